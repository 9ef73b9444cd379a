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

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// Version is the version of this build-description format understood by
// the core. Build files may require a minimum version via the
// ninja_required_version top-level binding. It tracks the Ninja feature
// set this package actually implements -- pools (1.3), implicit outputs
// (1.7), and |@ validations (1.11) -- so a manifest correctly declaring
// its minimum version for any of those features still loads.
const Version = "1.11.0"

// ParseVersion splits the major/minor components of a dotted version
// string.
func ParseVersion(version string) (int, int) {
	end := strings.Index(version, ".")
	if end == -1 {
		end = len(version)
	}
	major, _ := strconv.Atoi(keepNumbers(version[:end]))
	minor := 0
	if end != len(version) {
		start := end + 1
		end = strings.Index(version[start:], ".")
		if end == -1 {
			end = len(version)
		} else {
			end += start
		}
		minor, _ = strconv.Atoi(keepNumbers(version[start:end]))
	}
	return major, minor
}

func keepNumbers(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if i != -1 {
		return s[:i]
	}
	return s
}

// checkRequiredVersion reports whether a build file's declared
// required_version is compatible with Version.
func checkRequiredVersion(version string) error {
	binMajor, binMinor := ParseVersion(Version)
	fileMajor, fileMinor := ParseVersion(version)
	if binMajor > fileMajor {
		glog.Warningf("build-description version (%s) greater than required_version (%s); versions may be incompatible", Version, version)
	} else if (binMajor == fileMajor && binMinor < fileMinor) || binMajor < fileMajor {
		return fmt.Errorf("version (%s) incompatible with declared required_version (%s)", Version, version)
	}
	return nil
}
