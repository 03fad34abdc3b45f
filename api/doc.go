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


// Package api exposes ingestion, retrieval and chat over HTTP.
//
// Every /api route is scoped to the caller named by the X-Harvest-Owner
// header. Resources owned by someone else are reported as not found.
//
// # Routes
//
//	GET    /healthz
//	POST   /api/jobs                      create (and by default start) a scrape job
//	GET    /api/jobs
//	GET    /api/jobs/{id}
//	DELETE /api/jobs/{id}
//	POST   /api/jobs/{id}/start
//	POST   /api/documents                 multipart upload, form field "file"
//	GET    /api/documents
//	GET    /api/documents/{id}
//	DELETE /api/documents/{id}
//	POST   /api/databases
//	GET    /api/databases
//	GET    /api/databases/{id}
//	DELETE /api/databases/{id}
//	POST   /api/databases/{id}/search
//	POST   /api/databases/{id}/chat
//	POST   /api/maintenance/reclaim
//
// Errors are returned as {"error": {"code": ..., "message": ...}}.
package api
