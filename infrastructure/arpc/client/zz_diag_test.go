package client

import (
	"context"
	"testing"
	"time"

	"group-lab/contract"
	"group-lab/domain"
)

// Temporary diagnostic for the push-feed ordering failure. Deleted after use.
func TestZZDiagPushTypes(t *testing.T) {
	f := startFakeServer(t)
	s := dialTestSession(t, f)

	_, err := s.SendGroupMutation(context.Background(), contract.MutationRequest{Group: 1, Member: 1, Action: domain.ActionUnmute})
	if err != nil {
		t.Fatal(err)
	}
	<-f.calls

	f.push(t, PushFrame{Group: 42, Member: 5, Origin: "admin", Kind: KindCard, Card: "renamed"})
	f.push(t, PushFrame{Group: 42, Member: 5, Origin: "admin", Kind: "???"})
	f.push(t, PushFrame{Group: 42, Member: 5, Operator: 7, Origin: "admin", Kind: KindMute, Seconds: 600})

	for i := 0; i < 2; i++ {
		select {
		case c := <-s.Changes():
			t.Logf("change %d: dynamic type %T, value %#v", i, c, c)
		case <-time.After(2 * time.Second):
			t.Logf("change %d: TIMEOUT", i)
		}
	}
}
