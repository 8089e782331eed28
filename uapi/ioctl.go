// SPDX-FileCopyrightText: 2020 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package uapi

// ioctl constants defined in ioctl_XXX

type ioctl uintptr

func ioc(dir, t, nr, size uintptr) ioctl {
	return ioctl((dir << iocDirShift) |
		(size << iocSizeShift) |
		(t << iocTypeShift) |
		(nr << iocNRShift))
}

func ior(t, nr, size uintptr) ioctl {
	return ioc(iocRead, t, nr, size)
}

func iorw(t, nr, size uintptr) ioctl {
	return ioc(iocRead|iocWrite, t, nr, size)
}
