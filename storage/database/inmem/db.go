package inmemdb

import (
	"sync"

	"github.com/kagisom/imfundo/core/enrollment"
	"github.com/kagisom/imfundo/core/user"
)

type (
	DB struct {
		user       *userTable
		profile    *profileTable
		assignment *assignmentTable
		learner    *learnerTable
		staff      *staffTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	profileTable struct {
		sync.RWMutex
		table map[string]*enrollment.Profile
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]*enrollment.RoleAssignment
	}

	learnerTable struct {
		sync.RWMutex
		table map[string]*enrollment.LearnerRegistration
	}

	staffTable struct {
		sync.RWMutex
		table map[string]*enrollment.StaffRegistration
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		profile:    &profileTable{table: make(map[string]*enrollment.Profile)},
		assignment: &assignmentTable{table: make(map[string]*enrollment.RoleAssignment)},
		learner:    &learnerTable{table: make(map[string]*enrollment.LearnerRegistration)},
		staff:      &staffTable{table: make(map[string]*enrollment.StaffRegistration)},
	}
	return db, nil
}
