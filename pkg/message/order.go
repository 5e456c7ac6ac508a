// Copyright 2026 fanjia1024
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

package message

import (
	"fmt"

	"converser/pkg/errors"
)

// ValidateOrder 校验序列非空、以 user 开头且严格交替：偶数下标为 user，奇数下标为 assistant
func ValidateOrder(msgs []Message) error {
	if len(msgs) == 0 {
		return errors.Wrap(errors.ErrInvalidOrder, "empty sequence")
	}
	for i, m := range msgs {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if m.Role != want {
			return fmt.Errorf("message %d has role %q, want %q: %w", i, m.Role, want, errors.ErrInvalidOrder)
		}
	}
	return nil
}
