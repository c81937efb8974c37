package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"testing"
	"time"

	echoapi "github.com/darasahq/darasa/apps/api/echo"
	"github.com/darasahq/darasa/core/otp"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
	testutil "github.com/darasahq/darasa/tests"
)

var (
	codeRegex  = regexp.MustCompile(`\b(\d{6})\b`)
	tokenRegex = regexp.MustCompile(`token=([0-9a-f-]+)`)
)

func lastMailText(t *testing.T) string {
	if len(emailsvc.SentMessages) == 0 {
		t.Fatal("no mail was sent")
	}
	return emailsvc.SentMessages[len(emailsvc.SentMessages)-1].TextContent
}

func newUserBody(t *testing.T, name, uname, email, pwd string) []byte {
	return marchallObj(t, user.NewUser{
		Name:            name,
		Surname:         "Kabeya",
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
}

func Test_accountApi_register(t *testing.T) {
	app, deps := setup(t)

	testutil.CreateUser(t, deps.usrRepo, "Taken", "taken01", "taken@test.cd", "", user.RoleStudent, true, true)

	type extraTest struct {
		emailCount int
	}
	tests := []httpTest{
		{name: "required fields", path: "/api/students/register", body: []byte("{}"), wantCode: http.StatusBadRequest},
		{
			name: "invalid pwd: min len", path: "/api/students/register", wantCode: http.StatusBadRequest,
			body:     newUserBody(t, "Hero", "hero01", "hero@test.cd", "lol"),
			wantData: marchallObj(t, map[string]string{"password": "password must contain at least 8 characters"}),
		},
		{
			name: "invalid pwd: no whitespace", path: "/api/students/register", wantCode: http.StatusBadRequest,
			body:     newUserBody(t, "Hero", "hero01", "hero@test.cd", "l o loll"),
			wantData: marchallObj(t, map[string]string{"password": "password must not contain whitespace"}),
		},
		{
			name: "invalid pwd: not all numeric", path: "/api/students/register", wantCode: http.StatusBadRequest,
			body:     newUserBody(t, "Hero", "hero01", "hero@test.cd", "12345678"),
			wantData: marchallObj(t, map[string]string{"password": "password cannot be entirely numeric"}),
		},
		{
			name: "invalid pwd: complexity", path: "/api/students/register", wantCode: http.StatusBadRequest,
			body:     newUserBody(t, "Hero", "hero01", "hero@test.cd", "lol12345"),
			wantData: marchallObj(t, map[string]string{"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "invalid pwd: too similar to email", path: "/api/students/register", wantCode: http.StatusBadRequest,
			body:     newUserBody(t, "Hero", "hero01", "Her0@test.cd", "Her0@test.cd"),
			wantData: marchallObj(t, map[string]string{"password": "password cannot be similar to user attributes"}),
		},
		{
			name: "teacher fields required", path: "/api/teachers/register", wantCode: http.StatusBadRequest,
			body: newUserBody(t, "Teacher", "teach01", "teach@test.cd", "LolC@t123"),
			wantData: marchallObj(t, map[string]string{
				"subject":       "this field is required for teachers",
				"qualification": "this field is required for teachers",
			}),
		},
		{
			name: "duplicate email", path: "/api/students/register", wantCode: http.StatusConflict,
			body:     newUserBody(t, "Hero", "hero01", "taken@test.cd", "LolC@t123"),
			wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name: "duplicate username", path: "/api/students/register", wantCode: http.StatusConflict,
			body:     newUserBody(t, "Hero", "taken01", "hero@test.cd", "LolC@t123"),
			wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "ok", path: "/api/students/register", wantCode: http.StatusCreated,
			body:  newUserBody(t, "Hero", "hero01", "hero@test.cd", "LolC@t123"),
			extra: extraTest{emailCount: 1},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ClearSentMessages()

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				if len(emailsvc.SentMessages) != extra.emailCount {
					t.Fatalf("len(SentMessages) = %d; want %d", len(emailsvc.SentMessages), extra.emailCount)
				}
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if usr.IsVerified {
					t.Error("new account must not be verified")
				}
				if usr.Role != user.RoleStudent {
					t.Errorf("Role = %q; want %q", usr.Role, user.RoleStudent)
				}
				if !codeRegex.MatchString(lastMailText(t)) {
					t.Error("verification mail does not contain a code")
				}
			}
		})
	}
}

func Test_accountApi_verifyOTP(t *testing.T) {
	app, _ := setup(t)
	verifyBody := func(email, code string) []byte {
		return marchallObj(t, echoapi.VerifyOTPRequest{Email: email, Code: code})
	}

	// register & capture the emailed code
	emailsvc.ClearSentMessages()
	req, rec := newRequest(http.MethodPost, "/api/students/register", newUserBody(t, "Hero", "hero01", "hero@test.cd", "LolC@t123"))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	code := codeRegex.FindStringSubmatch(lastMailText(t))[1]

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	t.Run("wrong code", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/students/verify-otp", verifyBody("hero@test.cd", wrong))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: otp.ErrNotFound.Error()})}, rec)
	})

	t.Run("ok", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		req, rec := newRequest(http.MethodPost, "/api/students/verify-otp", verifyBody("hero@test.cd", code))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; want 200: %s", rec.Code, rec.Body.String())
		}
		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if !usr.IsVerified {
			t.Error("account must be verified")
		}
		if len(emailsvc.SentMessages) != 1 {
			t.Errorf("len(SentMessages) = %d; want 1 welcome mail", len(emailsvc.SentMessages))
		}
	})

	t.Run("replay", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/students/verify-otp", verifyBody("hero@test.cd", code))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusGone, wantData: marchallObj(t, httpErr{Error: otp.ErrAlreadyUsed.Error()})}, rec)
	})

	t.Run("resend on verified account", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/students/resend-otp", marchallObj(t, echoapi.EmailRequest{Email: "hero@test.cd"}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: user.ErrAlreadyVerified.Error()})}, rec)
	})

	t.Run("expired code", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		req, rec := newRequest(http.MethodPost, "/api/students/register", newUserBody(t, "Late", "late01", "late@test.cd", "LolC@t123"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
		}
		code := codeRegex.FindStringSubmatch(lastMailText(t))[1]

		otp.NowFunc = func() time.Time { return time.Now().Add(conf.OTPExpirationDelta + time.Minute) }
		defer func() { otp.NowFunc = time.Now }()

		req, rec = newRequest(http.MethodPost, "/api/students/verify-otp", verifyBody("late@test.cd", code))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusGone, wantData: marchallObj(t, httpErr{Error: otp.ErrExpired.Error()})}, rec)
	})
}

func Test_accountApi_login(t *testing.T) {
	app, deps := setup(t)

	student := testutil.CreateUser(t, deps.usrRepo, "Hero", "hero01", "hero@test.cd", "LolC@t123", user.RoleStudent, true, true)
	testutil.CreateUser(t, deps.usrRepo, "Shy", "shy0001", "shy@test.cd", "LolC@t123", user.RoleStudent, true, false)
	testutil.CreateUser(t, deps.usrRepo, "N Dog", "ndog001", "ndog@test.cd", "LolC@t123", user.RoleStudent, false, true)

	loginBody := func(uname, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{name: "unknown user", path: "/api/students/login", body: loginBody("lol", "lol"), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "wrong password", path: "/api/students/login", body: loginBody("hero01", "lol"), wantCode: http.StatusBadRequest, wantData: authFailed},
		{
			name: "wrong portal", path: "/api/teachers/login", body: loginBody("hero01", "LolC@t123"),
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "unverified account", path: "/api/students/login", body: loginBody("shy0001", "LolC@t123"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account not verified"}),
		},
		{
			name: "deactivated account", path: "/api/students/login", body: loginBody("ndog001", "LolC@t123"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "login with username", path: "/api/students/login", body: loginBody("hero01", "LolC@t123"), wantCode: http.StatusOK},
		{name: "login with email", path: "/api/students/login", body: loginBody("hero@test.cd", "LolC@t123"), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("code = %d; want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var respData echoapi.TokenResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				refreshed, err := deps.usrRepo.GetUserByID(context.Background(), student.ID)
				if err != nil {
					t.Fatalf("GetUserByID(): %v", err)
				}
				if refreshed.LastLogin.IsZero() {
					t.Error("last login not set")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_accountApi_resetPassword(t *testing.T) {
	app, deps := setup(t)

	student := testutil.CreateUser(t, deps.usrRepo, "Hero", "hero01", "hero@test.cd", "LolC@t123", user.RoleStudent, true, true)
	successLink := marchallObj(t, echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	t.Run("unknown email gets generic answer, no mail", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		req, rec := newRequest(http.MethodPost, "/api/students/reset-password-link", marchallObj(t, echoapi.EmailRequest{Email: "lol@test.cd"}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successLink}, rec)
		if len(emailsvc.SentMessages) != 0 {
			t.Errorf("len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
		}
	})

	var token string
	t.Run("known email gets the link", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		req, rec := newRequest(http.MethodPost, "/api/students/reset-password-link", marchallObj(t, echoapi.EmailRequest{Email: student.Email}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successLink}, rec)
		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
		}
		m := tokenRegex.FindStringSubmatch(lastMailText(t))
		if m == nil {
			t.Fatal("reset mail does not contain a token")
		}
		token = m[1]
	})

	resetBody := func(token, pwd string) []byte {
		return marchallObj(t, user.ResetUserPassword{Email: student.Email, Token: token, Password: pwd, PasswordConfirm: pwd})
	}

	t.Run("wrong token", func(t *testing.T) {
		req, rec := newRequest(http.MethodPatch, "/api/students/reset-password", resetBody("lol", "NewC@t123"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: user.ErrNotFound.Error()})}, rec)
	})

	t.Run("expired link", func(t *testing.T) {
		user.NowFunc = func() time.Time { return time.Now().Add(conf.PasswordResetTimeoutDelta + time.Minute) }
		defer func() { user.NowFunc = time.Now }()

		req, rec := newRequest(http.MethodPatch, "/api/students/reset-password", resetBody(token, "NewC@t123"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusGone, wantData: marchallObj(t, httpErr{Error: user.ErrLinkExpired.Error()})}, rec)
	})

	t.Run("ok", func(t *testing.T) {
		req, rec := newRequest(http.MethodPatch, "/api/students/reset-password", resetBody(token, "NewC@t123"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		}, rec)
	})

	t.Run("token is single use", func(t *testing.T) {
		req, rec := newRequest(http.MethodPatch, "/api/students/reset-password", resetBody(token, "New3rC@t123"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: user.ErrNotFound.Error()})}, rec)
	})

	t.Run("old password no longer works", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/students/login", marchallObj(t, echoapi.LoginRequest{Username: student.Username, Password: "LolC@t123"}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d; want 400", rec.Code)
		}

		req, rec = newRequest(http.MethodPost, "/api/students/login", marchallObj(t, echoapi.LoginRequest{Username: student.Username, Password: "NewC@t123"}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %d; want 200: %s", rec.Code, rec.Body.String())
		}
	})
}

func Test_accountApi_changePassword(t *testing.T) {
	app, deps := setup(t)

	student := testutil.CreateUser(t, deps.usrRepo, "Hero", "hero01", "hero@test.cd", "LolC@t123", user.RoleStudent, true, true)
	token := getToken(t, student)

	body := func(old, pwd string) []byte {
		return marchallObj(t, user.ChangePassword{OldPassword: old, Password: pwd, PasswordConfirm: pwd})
	}

	tests := []httpTest{
		{name: "auth required", body: body("LolC@t123", "NewC@t123"), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "wrong old password", token: token, body: body("lol", "NewC@t123"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"old_password": user.ErrInvalidPassword.Error()}),
		},
		{
			name: "ok", token: token, body: body("LolC@t123", "NewC@t123"),
			wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been changed."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPatch
		tt.path = "/api/students/change-password"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("new password works", func(t *testing.T) {
		refreshed, err := deps.usrRepo.GetUserByID(context.Background(), student.ID)
		if err != nil {
			t.Fatalf("GetUserByID(): %v", err)
		}
		if err := refreshed.CheckPassword("NewC@t123"); err != nil {
			t.Error("new password does not check out")
		}
	})
}

func Test_accountApi_query(t *testing.T) {
	app, deps := setup(t)

	admin := testutil.CreateUser(t, deps.usrRepo, "Admin", "admin01", "admin@test.cd", "", user.RoleAdmin, true, true)
	teacher := testutil.CreateUser(t, deps.usrRepo, "Teacher", "teach01", "teach@test.cd", "", user.RoleTeacher, true, true)
	student1 := testutil.CreateUser(t, deps.usrRepo, "Hero", "hero01", "hero@test.cd", "", user.RoleStudent, true, true)
	student2 := testutil.CreateUser(t, deps.usrRepo, "King", "king01", "king@test.cd", "", user.RoleStudent, true, true)

	tests := []httpTest{
		{name: "auth required", path: "/api/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "cross-portal listing forbidden", path: "/api/teachers", token: getToken(t, student1),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "own portal", path: "/api/students", token: getToken(t, student1),
			wantCode: http.StatusOK, wantData: marchallList(t, student1, student2),
		},
		{
			name: "admin can list any portal", path: "/api/teachers", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, teacher),
		},
		{
			name: "search", path: "/api/students?search=her", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, student1),
		},
		{
			name: "search (unknown)", path: "/api/students?search=lol", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: []byte("[]"),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_accountApi_detail(t *testing.T) {
	app, deps := setup(t)

	admin := testutil.CreateUser(t, deps.usrRepo, "Admin", "admin01", "admin@test.cd", "", user.RoleAdmin, true, true)
	student1 := testutil.CreateUser(t, deps.usrRepo, "Hero", "hero01", "hero@test.cd", "", user.RoleStudent, true, true)
	student2 := testutil.CreateUser(t, deps.usrRepo, "King", "king01", "king@test.cd", "", user.RoleStudent, true, true)

	notFound := marchallObj(t, httpErr{Error: "not found"})
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{
			name: "retrieve self", method: http.MethodGet, path: "/api/students/" + student1.ID,
			token: getToken(t, student1), wantCode: http.StatusOK, wantData: marchallObj(t, student1),
		},
		{
			name: "cannot retrieve others", method: http.MethodGet, path: "/api/students/" + student2.ID,
			token: getToken(t, student1), wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "admin can retrieve anyone", method: http.MethodGet, path: "/api/students/" + student2.ID,
			token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, student2),
		},
		{
			name: "wrong portal hides the account", method: http.MethodGet, path: "/api/teachers/" + student1.ID,
			token: getToken(t, admin), wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "update self", method: http.MethodPut, path: "/api/students/update/" + student1.ID,
			token: getToken(t, student1), body: marchallObj(t, user.UpdateUser{Name: "Heroic"}), wantCode: http.StatusOK,
		},
		{
			name: "is_active is admin-only", method: http.MethodPut, path: "/api/students/update/" + student1.ID,
			token: getToken(t, student1), body: []byte(`{"is_active": false}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "admin can deactivate", method: http.MethodPut, path: "/api/students/update/" + student1.ID,
			token: getToken(t, admin), body: []byte(`{"is_active": false}`), wantCode: http.StatusOK,
		},
		{
			name: "delete requires admin", method: http.MethodDelete, path: "/api/students/delete/" + student2.ID,
			token: getToken(t, student2), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "delete unknown account", method: http.MethodDelete, path: "/api/admins/delete/lol",
			token: getToken(t, admin), wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "admin cannot delete self", method: http.MethodDelete, path: "/api/admins/delete/" + admin.ID,
			token: getToken(t, admin), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "delete", method: http.MethodDelete, path: "/api/students/delete/" + student2.ID,
			token: getToken(t, admin), wantCode: http.StatusNoContent, wantData: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("deleted account is gone", func(t *testing.T) {
		if _, err := deps.usrRepo.GetUserByID(context.Background(), student2.ID); err == nil {
			t.Error("account still exists")
		}
	})

	t.Run("name was updated", func(t *testing.T) {
		refreshed, err := deps.usrRepo.GetUserByID(context.Background(), student1.ID)
		if err != nil {
			t.Fatalf("GetUserByID(): %v", err)
		}
		if refreshed.Name != "Heroic" {
			t.Errorf("Name = %q; want %q", refreshed.Name, "Heroic")
		}
	})
}

func Test_accountApi_upload(t *testing.T) {
	app, deps := setup(t)

	student := testutil.CreateUser(t, deps.usrRepo, "Hero", "hero01", "hero@test.cd", "", user.RoleStudent, true, true)
	token := getToken(t, student)

	req, rec := newMultipartRequest(t, http.MethodPost, "/api/students/upload/"+student.ID, token,
		nil, "picture", "me.png", []byte("fake-png"))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; want 200: %s", rec.Code, rec.Body.String())
	}

	var usr user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
		t.Fatalf("json.Unmarshal(): %v", err)
	}
	if usr.ProfilePicture == "" {
		t.Fatal("profile picture not set")
	}
	f, err := deps.storage.Open(usr.ProfilePicture)
	if err != nil {
		t.Fatalf("saved picture cannot be opened: %v", err)
	}
	_ = f.Close()
}

func Test_accountApi_tokenRefresh(t *testing.T) {
	app, deps := setup(t)

	student := testutil.CreateUser(t, deps.usrRepo, "Hero", "hero01", "hero@test.cd", "", user.RoleStudent, true, true)
	naughty := testutil.CreateUser(t, deps.usrRepo, "N Dog", "ndog001", "ndog@test.cd", "", user.RoleStudent, false, true)

	staleClaims := echoapi.GetUserClaims(conf, student, time.Now().Add(-2*conf.Server.JWTRefreshExpirationDelta).Unix())
	staleToken, err := echoapi.GenerateToken(conf, staleClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "refresh period expired", token: staleToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess the new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.TokenResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}
