package authz_test

import (
	"testing"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/authz"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
)

func TestAssertStationManagerOutOfScope(t *testing.T) {
	ownStation := idgen.New()
	otherStation := idgen.New()
	caller := authz.Caller{UserID: idgen.New(), Role: models.RoleManager, StationID: &ownStation}

	if err := authz.AssertStation(caller, ownStation, idgen.New()); err != nil {
		t.Fatalf("expected manager to access own station, got %v", err)
	}
	if err := authz.AssertStation(caller, otherStation, idgen.New()); err == nil {
		t.Fatalf("expected manager to be rejected for a foreign station")
	}
}

func TestAssertStationOwnerChecksOwnership(t *testing.T) {
	owner := idgen.New()
	station := idgen.New()
	caller := authz.Caller{UserID: owner, Role: models.RoleOwner}

	if err := authz.AssertStation(caller, station, owner); err != nil {
		t.Fatalf("expected owner of the station to pass, got %v", err)
	}
	if err := authz.AssertStation(caller, station, idgen.New()); err == nil {
		t.Fatalf("expected owner to be rejected for a station they don't own")
	}
}

func TestSuperAdminScopeIsUnrestricted(t *testing.T) {
	caller := authz.Caller{UserID: idgen.New(), Role: models.RoleSuperAdmin}
	scope := authz.StationScope(caller)
	if !scope.All {
		t.Fatalf("expected super_admin scope to cover all stations")
	}
	if err := authz.AssertStation(caller, idgen.New(), idgen.New()); err != nil {
		t.Fatalf("expected super_admin to pass any station assertion, got %v", err)
	}
}
