package nshelper

import (
	"testing"

	"github.com/vuinput/vuinputd/internal/vuerr"
)

func TestExitCodeForMapsContainerGone(t *testing.T) {
	err := vuerr.New(vuerr.ContainerGone, "gone")
	if got := exitCodeFor(err); got != ExitNoSuchNamespace {
		t.Errorf("exitCodeFor(ContainerGone) = %d, want %d", got, ExitNoSuchNamespace)
	}
}

func TestExitCodeForMapsPolicyRejected(t *testing.T) {
	err := vuerr.New(vuerr.PolicyRejected, "nope")
	if got := exitCodeFor(err); got != ExitPolicy {
		t.Errorf("exitCodeFor(PolicyRejected) = %d, want %d", got, ExitPolicy)
	}
}

func TestExitCodeForDefaultsToIO(t *testing.T) {
	err := vuerr.New(vuerr.HelperFailed, "boom")
	if got := exitCodeFor(err); got != ExitIO {
		t.Errorf("exitCodeFor(HelperFailed) = %d, want %d", got, ExitIO)
	}
}

func TestPerformRejectsUnknownKind(t *testing.T) {
	err := perform(Action{Kind: Kind("bogus")})
	if err == nil {
		t.Fatal("expected an error for an unknown action kind")
	}
	if vuerr.KindOf(err) != vuerr.ClientProtocol {
		t.Errorf("got kind %v, want ClientProtocol", vuerr.KindOf(err))
	}
}
