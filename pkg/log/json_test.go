// Copyright 2026 The gVisor Authors.
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

package log

import (
	"encoding/json"
	"testing"
)

func TestLevelJSON(t *testing.T) {
	for _, tc := range []struct {
		level Level
		json  string
	}{
		{level: Warning, json: `"warning"`},
		{level: Info, json: `"info"`},
		{level: Debug, json: `"debug"`},
	} {
		t.Run(tc.level.String(), func(t *testing.T) {
			got, err := json.Marshal(tc.level)
			if err != nil {
				t.Fatalf("Marshal(%v): %v", tc.level, err)
			}
			if string(got) != tc.json {
				t.Errorf("Marshal(%v) = %s, want %s", tc.level, got, tc.json)
			}
			var back Level
			if err := json.Unmarshal(got, &back); err != nil {
				t.Fatalf("Unmarshal(%s): %v", got, err)
			}
			if back != tc.level {
				t.Errorf("Unmarshal(%s) = %v, want %v", got, back, tc.level)
			}
		})
	}
}

func TestLevelFromInt(t *testing.T) {
	for in, want := range map[string]Level{"0": Warning, "1": Info, "2": Debug} {
		var lv Level
		if err := json.Unmarshal([]byte(in), &lv); err != nil {
			t.Errorf("Unmarshal(%s): %v", in, err)
			continue
		}
		if lv != want {
			t.Errorf("Unmarshal(%s) = %v, want %v", in, lv, want)
		}
	}
	var lv Level
	if err := json.Unmarshal([]byte(`"loud"`), &lv); err == nil {
		t.Errorf("Unmarshal(\"loud\") succeeded, want error")
	}
}
