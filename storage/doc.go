// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage persists harvest's records: scrape jobs, document jobs
// and vector databases. Store hands out one repository per record type and
// is implemented by storage/badger (embedded, the default driver) and
// storage/postgres.
//
// Update takes a mutate func and runs it as one atomic read-modify-write.
// The transition guards in transitions.go are called from inside mutate, so
// of two callers racing to start the same pending job exactly one wins and
// the other gets the guard's error.
//
// Repositories are safe for concurrent use. List filters by owner; Get does
// not, so ownership checks belong to the caller.
package storage
