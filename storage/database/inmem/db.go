package inmemdb

import (
	"sync"

	"github.com/darasahq/darasa/core/classwork"
	"github.com/darasahq/darasa/core/message"
	"github.com/darasahq/darasa/core/otp"
	"github.com/darasahq/darasa/core/user"
)

type (
	DB struct {
		user       *userTable
		otp        *otpTable
		message    *messageTable
		assignment *assignmentTable
		submission *submissionTable
		score      *scoreTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	otpTable struct {
		table map[string]*otp.Credential
		mutex sync.RWMutex
	}

	messageTable struct {
		table map[string]*message.Message
		mutex sync.RWMutex
	}

	assignmentTable struct {
		table map[string]*classwork.Assignment
		mutex sync.RWMutex
	}

	submissionTable struct {
		table map[string]*classwork.Submission
		mutex sync.RWMutex
	}

	scoreTable struct {
		table map[string]*classwork.Score
		mutex sync.RWMutex
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		otp:        &otpTable{table: make(map[string]*otp.Credential)},
		message:    &messageTable{table: make(map[string]*message.Message)},
		assignment: &assignmentTable{table: make(map[string]*classwork.Assignment)},
		submission: &submissionTable{table: make(map[string]*classwork.Submission)},
		score:      &scoreTable{table: make(map[string]*classwork.Score)},
	}
	return db, nil
}
