package uevent

import (
	"golang.org/x/exp/constraints"

	"github.com/vuinput/vuinputd/internal/vuerr"
)

// joinOrdered formats up to n elements of slice as a comma-separated list,
// for log lines that summarize ring contents without dumping the whole
// thing. Generic over any ordered element; Store uses it for the devpaths
// it reports when the ring overflows.
func joinOrdered[T constraints.Ordered](slice []T, n int) string {
	if len(slice) < n {
		n = len(slice)
	}

	var message string
	for i, v := range slice[:n] {
		if i+1 == n {
			message += vuerr.Sprintf("%v", v)
		} else {
			message += vuerr.Sprintf("%v, ", v)
		}
	}
	return message
}
