package service

import (
	"context"
	"testing"
)

func TestHasStaffPrivilege(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.addMember("admin-1", testAdminRole)
	env.addMember("support-1", testSupportRole)
	env.addMember("cust-1")
	env.addMember("odd-1", "role-unrelated")

	cases := []struct {
		memberID string
		want     bool
	}{
		{"admin-1", true},
		{"support-1", true},
		{"cust-1", false},
		{"odd-1", false},
	}
	for _, tc := range cases {
		got, err := env.roles.HasStaffPrivilege(ctx, tc.memberID)
		if err != nil {
			t.Fatalf("%s: %v", tc.memberID, err)
		}
		if got != tc.want {
			t.Errorf("HasStaffPrivilege(%s) = %v, want %v", tc.memberID, got, tc.want)
		}
	}

	t.Run("unknown member has no privilege", func(t *testing.T) {
		got, err := env.roles.HasStaffPrivilege(ctx, "ghost")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got {
			t.Fatal("unknown members must not be staff")
		}
	})
}

func TestHasStaffPrivilegeIgnoresEmptyRoleConfig(t *testing.T) {
	// A blank configured role id must never match members with empty role
	// entries.
	env := newTestEnv()
	env.roles.roles.SupportRoleID = ""
	env.addMember("blank-1", "")

	got, err := env.roles.HasStaffPrivilege(context.Background(), "blank-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Fatal("empty role ids must not grant privilege")
	}
}
