// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

//go:build linux && (386 || amd64)

package uapi

import (
	"encoding/binary"
)

var nativeEndian binary.ByteOrder = binary.LittleEndian
