/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package clockstate

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is an opaque fixed-size byte region that survives power-down
// but not a full cold reset
type Store interface {
	Load() ([]byte, error)
	Save(b []byte) error
}

// FileStore keeps the record in a file, standing in for the RTC memory window
type FileStore struct {
	Path string
}

// Load reads the whole region
func (f *FileStore) Load() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Save replaces the region. Write-then-rename so a power loss mid-write
// leaves the previous record intact.
func (f *FileStore) Save(b []byte) error {
	if len(b) != RecordSizeBytes {
		return fmt.Errorf("refusing to store %d bytes, record is %d", len(b), RecordSizeBytes)
	}
	tmp := f.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

// MemStore is an in-memory Store for tests and simulations
type MemStore struct {
	data []byte
}

// Load returns previously saved bytes
func (m *MemStore) Load() ([]byte, error) {
	if m.data == nil {
		return nil, fmt.Errorf("nothing stored")
	}
	return m.data, nil
}

// Save remembers a copy of b
func (m *MemStore) Save(b []byte) error {
	m.data = append([]byte{}, b...)
	return nil
}
