// Copyright 2025 UMH Systems GmbH
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

package migration

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	lz4FrameMagic = []byte{0x04, 0x22, 0x4d, 0x18}
	zstdMagic     = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Decompress wraps a compressed migration program. The format, an LZ4 frame or zstd, is
// detected from the magic number; anything else is ErrDecompress.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read header: %w", ErrDecompress, err)
	}

	switch {
	case bytes.Equal(magic, lz4FrameMagic):
		return io.NopCloser(lz4.NewReader(br)), nil
	case bytes.Equal(magic, zstdMagic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
		}

		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %x", ErrDecompress, magic)
	}
}

// readProgram decompresses a whole migration program.
func readProgram(r io.Reader) ([]byte, error) {
	dec, err := Decompress(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	program, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
	}

	return program, nil
}
