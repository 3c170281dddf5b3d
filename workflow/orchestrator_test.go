package workflow

import (
	"errors"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/pharma_procure/utils"
)

func TestCollectionEscalation_FailsWithSupplierMessage(t *testing.T) {
	// A closed window with zero quotes escalates, and the resulting failure
	// message tells the pharmacist what happened.
	ready, escalate := ReadyForNextStage(0, true)
	if ready || !escalate {
		t.Fatalf("zero quotes after the window: ready=%v escalate=%v", ready, escalate)
	}

	msg := errNoSupplierResponse.Error()
	for _, want := range []string{"no", "supplier"} {
		if !strings.Contains(msg, want) {
			t.Errorf("failure message missing %q: %s", want, msg)
		}
	}
	if !errors.Is(errNoSupplierResponse, utils.ErrorCollectionTimeout) {
		t.Error("escalation does not wrap the collection timeout sentinel")
	}
}
