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

package tooluse

import (
	"strings"
)

// ParseDocstring 拆分主描述与参数描述。
// "Args:" 或 "Parameters" 开启参数段；段内 "name: desc" 行记为参数（name 取冒号前第一个词），空行结束参数段。
func ParseDocstring(doc string) (string, map[string]string) {
	params := make(map[string]string)
	var main []string
	inParams := false

	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Args:") || strings.HasPrefix(line, "Parameters") {
			inParams = true
			continue
		}
		if inParams {
			if line == "" {
				inParams = false
				continue
			}
			name, desc, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			fields := strings.Fields(name)
			if len(fields) == 0 {
				continue
			}
			params[fields[0]] = strings.TrimSpace(desc)
			continue
		}
		main = append(main, line)
	}
	return strings.TrimSpace(strings.Join(main, "\n")), params
}
