package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/darasahq/darasa/core/message"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
	testutil "github.com/darasahq/darasa/tests"
)

func Test_messageApi_send(t *testing.T) {
	app, deps := setup(t)

	teacher := testutil.CreateUser(t, deps.usrRepo, "Teacher", "teach01", "teach@test.cd", "", user.RoleTeacher, true, true)
	student := testutil.CreateUser(t, deps.usrRepo, "Hero", "hero01", "hero@test.cd", "", user.RoleStudent, true, true)
	teacherToken := getToken(t, teacher)

	body := func(rcptID, subject, content string) []byte {
		return marchallObj(t, message.NewMessage{RecipientID: rcptID, Subject: subject, Content: content})
	}

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/messages", body(student.ID, "Homework", "Chapter 4, please."))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("required fields", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/messages", teacherToken, []byte("{}"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d; want 400", rec.Code)
		}
	})

	t.Run("unknown recipient", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/messages", teacherToken, body("lol", "Homework", "Chapter 4, please."))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: message.ErrRecipientNotFound.Error()}),
		}, rec)
	})

	var sent message.Message
	t.Run("ok", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		req, rec := newAuthRequest(http.MethodPost, "/api/messages", teacherToken, body(student.ID, "Homework", "Chapter 4, please."))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d; want 201: %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &sent); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if sent.SenderID != teacher.ID {
			t.Errorf("SenderID = %q; want %q", sent.SenderID, teacher.ID)
		}

		// the recipient is notified by mail
		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
		}
		if to := emailsvc.SentMessages[0].To[0].Address; to != student.Email {
			t.Errorf("To = %q; want %q", to, student.Email)
		}
	})

	t.Run("inbox", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/messages/inbox", getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, sent)}, rec)
	})

	t.Run("sender's inbox is empty", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/messages/inbox", teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte("[]")}, rec)
	})

	t.Run("sent", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/messages/sent", teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, sent)}, rec)
	})
}
