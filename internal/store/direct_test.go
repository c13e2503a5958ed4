package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestNormalizeParticipants(t *testing.T) {
	cases := []struct {
		requester int64
		userIDs   []int64
		want      []int64
	}{
		{3, []int64{7}, []int64{3, 7}},
		{7, []int64{3}, []int64{3, 7}},          // order independent of requester
		{3, []int64{7, 3, 7}, []int64{3, 7}},    // duplicates collapse
		{3, nil, []int64{3}},                    // self room
		{3, []int64{0, -1, 7}, []int64{3, 7}},   // invalid ids dropped
		{5, []int64{9, 2, 4}, []int64{2, 4, 5, 9}},
	}

	for _, c := range cases {
		got := NormalizeParticipants(c.requester, c.userIDs)
		if len(got) != len(c.want) {
			t.Errorf("NormalizeParticipants(%d, %v) = %v, want %v", c.requester, c.userIDs, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("NormalizeParticipants(%d, %v) = %v, want %v", c.requester, c.userIDs, got, c.want)
				break
			}
		}
	}
}

func TestParticipantSetKeyOrderIndependent(t *testing.T) {
	a := ParticipantSetKey([]int64{3, 7})
	b := ParticipantSetKey([]int64{7, 3})
	if a != b {
		t.Errorf("keys differ for equal sets: %q vs %q", a, b)
	}
	if a != "3:7" {
		t.Errorf("key = %q, want %q", a, "3:7")
	}
}

func TestParticipantSetKeySelf(t *testing.T) {
	if got := ParticipantSetKey([]int64{3}); got != "3" {
		t.Errorf("self set key = %q, want %q", got, "3")
	}
	if got := ParticipantSetKey([]int64{3, 3}); got != "3" {
		t.Errorf("duplicate self set key = %q, want %q", got, "3")
	}
}

func TestParticipantSetKeyDistinctSets(t *testing.T) {
	if ParticipantSetKey([]int64{3, 7}) == ParticipantSetKey([]int64{3, 7, 9}) {
		t.Error("different sets produced the same key")
	}
	// "1:23" must not collide with "12:3".
	if ParticipantSetKey([]int64{1, 23}) == ParticipantSetKey([]int64{12, 3}) {
		t.Error("delimiter does not separate adjacent ids")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: "23505"}
	if !isUniqueViolation(unique) {
		t.Error("23505 not recognized as unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("insert: %w", unique)) {
		t.Error("wrapped 23505 not recognized")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("foreign key violation misclassified as unique violation")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Error("plain error misclassified as unique violation")
	}
	if isUniqueViolation(nil) {
		t.Error("nil misclassified as unique violation")
	}
}
