package permission

import (
	"testing"

	"github.com/dreamware/graphdb/internal/model"
)

func TestCanAccess(t *testing.T) {
	cases := []struct {
		name   string
		perms  model.Permissions
		ctx    model.AuthContext
		expect bool
	}{
		{"admin bypasses everything", model.NewPermissions("secret"), model.AuthContext{IsAdmin: true}, true},
		{"public entity is visible to anyone", nil, model.AuthContext{}, true},
		{"intersecting token grants access", model.NewPermissions("read"), model.AuthContext{UserPermissions: model.NewPermissions("read")}, true},
		{"disjoint tokens deny access", model.NewPermissions("read"), model.AuthContext{UserPermissions: model.NewPermissions("write")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAccess(tc.perms, tc.ctx); got != tc.expect {
				t.Errorf("CanAccess() = %v, want %v", got, tc.expect)
			}
		})
	}
}
