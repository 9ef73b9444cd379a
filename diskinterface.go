// Copyright 2011 Google Inc. All Rights Reserved.
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
	"os"
	"time"
)

// FileReader reads the full contents of a manifest file, abstracted so
// tests can serve synthetic file trees without touching disk (mirroring
// the teacher's FileReader used by ManifestParser for include/subninja).
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// RealFileReader reads files straight from disk.
type RealFileReader struct{}

func (RealFileReader) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// RealFileSystem is the FileSystem that actually hits disk, mirroring the
// teacher's RealDiskInterface but trimmed to the single operation the
// core depends on: stat. There is no stat cache here (unlike the
// teacher's use_cache_/Cache map) since a Store already stats each
// PathKey at most once per build.
type RealFileSystem struct{}

// Stat implements FileSystem using os.Stat. A not-found path reports
// exists=false with a nil error; any other failure (permission denied, a
// path component that isn't a directory, ...) is returned as an error so
// the caller can surface it as a fatal IOError rather than silently
// treating it as "missing".
func (RealFileSystem) Stat(path string) (time.Time, bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return fi.ModTime(), true, nil
}
