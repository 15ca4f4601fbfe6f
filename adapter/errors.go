package adapter

import (
	"syscall"

	"github.com/andybochmann/blob-mounter/blobstore"
)

// errno maps a Store error to the OS error code the callback should
// return, via ErrorKind (§7). A nil error maps to 0 (success).
func errno(err error) syscall.Errno {
	switch blobstore.Classify(err) {
	case blobstore.KindSuccess:
		return 0
	case blobstore.KindNotFound:
		return syscall.ENOENT
	case blobstore.KindAlreadyExists:
		return syscall.EEXIST
	case blobstore.KindAccessDenied:
		return syscall.EACCES
	case blobstore.KindSharingViolation:
		return syscall.EBUSY
	case blobstore.KindInvalidParameter:
		return syscall.EINVAL
	case blobstore.KindInvalidHandle:
		return syscall.EBADF
	case blobstore.KindNotImplemented:
		return syscall.ENOSYS
	default:
		return syscall.EIO
	}
}
