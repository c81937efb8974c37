package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/classwork"
	"github.com/darasahq/darasa/core/message"
	"github.com/darasahq/darasa/core/user"
	"github.com/darasahq/darasa/storage/files"
)

type classworkApi struct {
	svc      classwork.Service
	msgSvc   message.Service
	usrSvc   user.Service
	storage  *files.Storage
	validate *validator.Validate
}

// registerClassworkAPI mounts the teacher-only and student-only extras
// on top of the account portals.
func registerClassworkAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc classwork.Service,
	msgSvc message.Service,
	usrSvc user.Service,
	storage *files.Storage,
	validate *validator.Validate,
) {
	api := classworkApi{
		svc:      svc,
		msgSvc:   msgSvc,
		usrSvc:   usrSvc,
		storage:  storage,
		validate: validate,
	}

	tg := g.Group("/teachers", jwt, teacherMiddleware())
	tg.POST("/assignments", api.createAssignment)
	tg.GET("/assignments", api.teacherAssignments)
	tg.GET("/assignments/:id/submissions", api.assignmentSubmissions)
	tg.POST("/scores", api.recordScore)
	tg.PUT("/scores", api.recordScore)
	tg.POST("/broadcast", api.broadcast)
	tg.POST("/notify/:id", api.notify)

	sg := g.Group("/students", jwt, studentMiddleware())
	sg.GET("/assignments", api.allAssignments)
	sg.POST("/assignments/:id/submit", api.submitAnswer)
	sg.GET("/scores", api.studentScores)
	sg.GET("/search", api.searchStudents)
}

// Teacher handlers

func (api *classworkApi) createAssignment(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data classwork.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	fh, err := ctx.FormFile("assignment")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "assignment", Error: "this field is required"})
	}
	path, err := api.storage.Save(fh, files.AssignmentsDir)
	if err != nil {
		return errors.Wrap(err, "saving assignment file")
	}

	a, err := api.svc.CreateAssignment(ctx.Request().Context(), ctxUsr, data, path)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *classworkApi) teacherAssignments(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	assignments, err := api.svc.TeacherAssignments(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []classwork.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *classworkApi) assignmentSubmissions(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	a, err := api.svc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	// teachers can only inspect their own assignments
	if a.TeacherID != ctxUsr.ID {
		return errHttpForbidden
	}

	subs, err := api.svc.AssignmentSubmissions(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []classwork.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *classworkApi) recordScore(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data classwork.NewScore
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScore")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	score, err := api.svc.RecordScore(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, score)
}

func (api *classworkApi) broadcast(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data message.Broadcast
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Broadcast")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.msgSvc.BroadcastToRole(ctx.Request().Context(), ctxUsr, user.RoleStudent, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, BroadcastResponse{Recipients: n})
}

func (api *classworkApi) notify(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data NotifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NotifyRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.msgSvc.Send(ctx.Request().Context(), ctxUsr, message.NewMessage{
		RecipientID: ctx.Param("id"),
		Subject:     data.Subject,
		Content:     data.Content,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// Student handlers

func (api *classworkApi) allAssignments(ctx echo.Context) error {
	assignments, err := api.svc.AllAssignments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []classwork.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *classworkApi) submitAnswer(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fh, err := ctx.FormFile("answer")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "answer", Error: "this field is required"})
	}
	path, err := api.storage.Save(fh, files.AnswersDir)
	if err != nil {
		return errors.Wrap(err, "saving answer file")
	}

	sub, err := api.svc.SubmitAnswer(ctx.Request().Context(), ctxUsr, ctx.Param("id"), path)
	if err != nil {
		// the file is orphaned if the submission is refused
		if rmErr := api.storage.Remove(path); rmErr != nil {
			ctx.Logger().Errorf("%+v", errors.Wrap(rmErr, "removing orphaned answer file"))
		}
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *classworkApi) studentScores(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	scores, err := api.svc.StudentScores(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying scores")
	}
	if scores == nil {
		scores = []classwork.Score{}
	}
	return ctx.JSON(http.StatusOK, scores)
}

func (api *classworkApi) searchStudents(ctx echo.Context) error {
	filter := &user.QueryFilter{
		Search: ctx.QueryParam("username"),
		Role:   user.RoleStudent,
	}
	filter.Clean()

	users, err := api.usrSvc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "searching students")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

type (
	NotifyRequest struct {
		Subject string `json:"subject" validate:"required"`
		Content string `json:"content" validate:"required"`
	}

	BroadcastResponse struct {
		Recipients int `json:"recipients"`
	}
)

func (nr *NotifyRequest) Validate(validate *validator.Validate) error {
	nr.Subject = core.CleanString(nr.Subject)
	nr.Content = core.CleanString(nr.Content)
	return validate.Struct(nr)
}
