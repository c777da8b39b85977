// Copyright 2015 Zalando SE
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builtin

import (
	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
)

type preserveHostHeader struct{}

// NewPreserveHostHeader returns the filter factory that makes the
// dispatch filters send the Host header of the incoming request to the
// upstream, instead of the host of the target URL.
func NewPreserveHostHeader() filters.Spec { return preserveHostHeader{} }

func (preserveHostHeader) Name() string                       { return PreserveHostHeaderName }
func (preserveHostHeader) NewConfig() any                     { return nil }
func (preserveHostHeader) ShortcutFieldOrder() []string       { return nil }
func (preserveHostHeader) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (s preserveHostHeader) Apply(any) (filters.Handler, error) { return s, nil }

func (preserveHostHeader) Filter(ex *exchange.Exchange, next filters.Chain) error {
	ex.Set(exchange.PreserveHostHeaderKey, true)
	return next.Next(ex)
}
