package dnscache

import (
	"os"
	"strings"

	"github.com/miekg/dns"
)

func SliceContains[T string | int | uint | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 |
	float32 | float64](s []T, e T) bool {

	for _, a := range s {
		if a == e {
			return true
		}
	}
	return false
}

func RemoveSliceDuplicate[T comparable](sliceList []T) (list []T) {
	allKeys_ := make(map[T]bool)
	defer func() { allKeys_ = nil }()
	list = make([]T, 0, len(sliceList))
	for _, item := range sliceList {
		if _, found := allKeys_[item]; !found {
			allKeys_[item] = true
			list = append(list, item)
		}
	}
	return
}

func PathExists(filePath string) bool {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return false
	}
	return true
}

// RdataText returns the textual rdata of a record, without the owner name,
// TTL, class and type columns that RR.String() prepends.
func RdataText(rr dns.RR) string {
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}
