package user

import (
	"github.com/kagisom/imfundo/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a user Service for tests.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			conf:    conf,
			subs:    make(map[int]func(SessionEvent)),
		},
	}
}
