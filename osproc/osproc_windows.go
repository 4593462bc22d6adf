//go:build windows

package osproc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// memoryBasicInformation mirrors MEMORY_BASIC_INFORMATION, grounded on
// other_examples/afumu-wetrace__memory.go's VirtualQueryEx usage.
type memoryBasicInformation struct {
	BaseAddress       uintptr
	AllocationBase    uintptr
	AllocationProtect uint32
	RegionSize        uintptr
	State             uint32
	Protect           uint32
	Type              uint32
}

const (
	memCommit  = 0x1000
	memMapped  = 0x40000
	pageReadwrite  = 0x04
	pageWritecopy  = 0x08
)

var (
	modkernel32        = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualQueryEx = modkernel32.NewProc("VirtualQueryEx")
)

// Windows binds Collaborator to VirtualQueryEx for enumeration and
// ReadProcessMemory for remote reads.
type Windows struct{}

func openTarget(pid int) (windows.Handle, error) {
	const access = windows.PROCESS_QUERY_INFORMATION | windows.PROCESS_VM_READ
	h, err := windows.OpenProcess(access, false, uint32(pid))
	if err != nil {
		return 0, fmt.Errorf("osproc: OpenProcess: %w", err)
	}
	return h, nil
}

func (Windows) EnumerateRegion(pid int, address uint64) (Info, bool) {
	h, err := openTarget(pid)
	if err != nil {
		return Info{}, false
	}
	defer windows.CloseHandle(h)

	var mbi memoryBasicInformation
	ret, _, _ := procVirtualQueryEx.Call(
		uintptr(h),
		uintptr(address),
		uintptr(unsafe.Pointer(&mbi)),
		unsafe.Sizeof(mbi),
	)
	if ret == 0 {
		return Info{}, false
	}

	var bits uint32
	if mbi.Protect&(pageReadwrite|pageWritecopy) != 0 {
		bits |= ProtRead | ProtWrite
	}
	if mbi.Protect&pageWritecopy != 0 {
		bits |= ProtCopyOnWrite
	}

	return Info{
		Base:       uint64(mbi.BaseAddress),
		Size:       uint64(mbi.RegionSize),
		Protection: bits,
		Committed:  mbi.State == memCommit,
		FileMapped: mbi.Type == memMapped,
	}, true
}

func (Windows) ReadRemote(pid int, base uint64, buf []byte) (bool, int) {
	if len(buf) == 0 {
		return true, 0
	}
	h, err := openTarget(pid)
	if err != nil {
		return false, 0
	}
	defer windows.CloseHandle(h)

	var read uintptr
	err = windows.ReadProcessMemory(h, uintptr(base), &buf[0], uintptr(len(buf)), &read)
	if err != nil {
		return false, 0
	}
	return true, int(read)
}

func (Windows) RangeBounds(pid int) (uint64, uint64, error) {
	h, err := openTarget(pid)
	if err != nil {
		return 0, 0, err
	}
	defer windows.CloseHandle(h)

	var sysInfo windows.SystemInfo
	windows.GetSystemInfo(&sysInfo)
	return uint64(uintptr(unsafe.Pointer(sysInfo.LpMinimumApplicationAddress))),
		uint64(uintptr(unsafe.Pointer(sysInfo.LpMaximumApplicationAddress))), nil
}
