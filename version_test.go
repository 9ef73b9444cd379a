// Copyright 2013 Google Inc. All Rights Reserved.
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

package nin

import "testing"

func TestParseVersion(t *testing.T) {
	cases := []struct {
		in         string
		major, min int
	}{
		{"1.0", 1, 0},
		{"1.0.1", 1, 0},
		{"2", 2, 0},
		{"", 0, 0},
	}
	for _, c := range cases {
		major, minor := ParseVersion(c.in)
		if major != c.major || minor != c.min {
			t.Errorf("ParseVersion(%q) = (%d, %d), want (%d, %d)", c.in, major, minor, c.major, c.min)
		}
	}
}

func TestCheckRequiredVersionRejectsNewer(t *testing.T) {
	if err := checkRequiredVersion("999.0"); err == nil {
		t.Error("a required_version far newer than the binary's should be rejected")
	}
}

func TestCheckRequiredVersionAcceptsOlderOrEqual(t *testing.T) {
	if err := checkRequiredVersion("1.0"); err != nil {
		t.Errorf("required_version 1.0 should be accepted: %s", err)
	}
	if err := checkRequiredVersion("0.1"); err != nil {
		t.Errorf("an older required_version should be accepted: %s", err)
	}
}
