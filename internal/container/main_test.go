package container

import (
	"os"
	"testing"

	"github.com/vuinput/vuinputd/internal/vlog"
)

func TestMain(m *testing.M) {
	vlog.InitDiscard()
	os.Exit(m.Run())
}
