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


package mock

import (
	"sync/atomic"

	"github.com/poiesic/harvest/ai"
)

// MockProvider pairs a MockEmbedder with a MockGenerator. Both fields are
// exported so tests can inject behavior or inspect calls directly.
type MockProvider struct {
	Embeds *MockEmbedder
	Chat   *MockGenerator

	closes atomic.Int32
}

var _ ai.AIProvider = (*MockProvider)(nil)

// NewMockProvider returns a provider with default deterministic doubles.
func NewMockProvider() *MockProvider {
	return &MockProvider{Embeds: NewMockEmbedder(), Chat: NewMockGenerator()}
}

func (p *MockProvider) Embedder() ai.Embedder { return p.Embeds }
func (p *MockProvider) Generator() ai.TextGenerator { return p.Chat }

// Close counts calls so tests can check shutdown wiring.
func (p *MockProvider) Close() error {
	p.closes.Add(1)
	return nil
}

// Closed reports how many times Close ran.
func (p *MockProvider) Closed() int {
	return int(p.closes.Load())
}
