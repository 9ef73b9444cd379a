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
	"path/filepath"
	"testing"
)

func TestRealFileSystemStatMissing(t *testing.T) {
	dir := t.TempDir()
	_, exists, err := (RealFileSystem{}).Stat(filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("a file that was never created should not exist")
	}
}

func TestRealFileSystemStatExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present")
	if err := os.WriteFile(path, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime, exists, err := (RealFileSystem{}).Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("a file just written should exist")
	}
	if mtime.IsZero() {
		t.Error("mtime should not be the zero value for an existing file")
	}
}

func TestRealFileReaderReadsWhatWasWritten(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.ninja")
	want := "rule cc\n  command = cc\n"
	if err := os.WriteFile(path, []byte(want), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := (RealFileReader{}).ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Errorf("ReadFile = %q, want %q", got, want)
	}
}
