package testutil

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role string,
	isActive, isVerified bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:       name,
		Username:   uname,
		Email:      email,
		Role:       role,
		IsActive:   isActive,
		IsVerified: isVerified,
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// NewLogger returns a core.Logger that writes to stdout; fatals do not exit.
func NewLogger() core.Logger {
	return &testLogger{std: log.New(os.Stdout, "TEST : ", log.LstdFlags)}
}

type testLogger struct {
	std *log.Logger
}

func (l *testLogger) log(lvl, msg string, args ...interface{}) {
	if len(args) > 0 {
		l.std.Printf("%s: %s %v", lvl, msg, args)
	} else {
		l.std.Printf("%s: %s", lvl, msg)
	}
}

func (l *testLogger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args...) }
func (l *testLogger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args...) }
func (l *testLogger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args...) }
func (l *testLogger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args...) }
func (l *testLogger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args...)
	panic(fmt.Sprintf("%s %v", msg, args))
}
