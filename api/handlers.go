package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskledger-api/domain"
)

const (
	createBodyMaxSize = 16 << 10
	updateBodyMaxSize = 4 << 10

	idempotencyKeyHeader = "Idempotency-Key"
)

// Register wires up all routes on the provided Echo instance. deduper may be
// nil, which disables idempotent create.
func Register(e *echo.Echo, store Storage, creds Credentials, auth Sessions, deduper Deduper, logger *log.Logger) {
	e.POST("/register", register(creds, logger))
	e.GET("/login", loginPage())
	e.POST("/login", handleLogin(creds, auth, logger))
	e.GET("/healthz", healthz(store))

	authed := e.Group("", RequireAccount(auth))
	authed.GET("/", index(store, logger))
	authed.POST("/tasks", createTask(store, deduper, logger))
	authed.PATCH("/tasks/:task_id", updateTaskState(store, logger))
}

type credentialsForm struct {
	EmailAddress string `form:"email_address" json:"email_address"`
	RawPassword  string `form:"raw_password" json:"raw_password"`
}

func register(creds Credentials, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var form credentialsForm
		if err := c.Bind(&form); err != nil || form.EmailAddress == "" || form.RawPassword == "" {
			return c.String(http.StatusBadRequest, "email_address and raw_password are required")
		}

		accountID, err := creds.Register(c.Request().Context(), form.EmailAddress, form.RawPassword)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrDuplicateEmail):
				return c.String(http.StatusConflict, "email already registered")
			case errors.Is(err, domain.ErrHashingFailure):
				return c.String(http.StatusBadRequest, "invalid password")
			}
			logger.WithError(err).Error("register failed")
			return c.String(http.StatusInternalServerError, "internal error")
		}
		return c.JSON(http.StatusOK, map[string]string{"account_id": accountID.String()})
	}
}

func loginPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, "POST email_address and raw_password to /login\n")
	}
}

func handleLogin(creds Credentials, auth Sessions, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var form credentialsForm
		if err := c.Bind(&form); err != nil || form.EmailAddress == "" || form.RawPassword == "" {
			return c.String(http.StatusBadRequest, "email_address and raw_password are required")
		}

		accountID, ok, err := creds.Verify(c.Request().Context(), form.EmailAddress, form.RawPassword)
		if err != nil {
			logger.WithError(err).Error("verify credentials failed")
			return c.String(http.StatusInternalServerError, "internal error")
		}
		if !ok {
			// One failure shape for unknown email and wrong password.
			return c.String(http.StatusUnauthorized, "invalid credentials")
		}

		token, err := auth.Issue(accountID)
		if err != nil {
			logger.WithError(err).Error("issue session token failed")
			return c.String(http.StatusInternalServerError, "internal error")
		}
		if err := writeSessionToken(c, token, auth.TTL()); err != nil {
			logger.WithError(err).Error("write session cookie failed")
			return c.String(http.StatusInternalServerError, "internal error")
		}

		if wantsJSON(c) {
			return c.JSON(http.StatusOK, map[string]string{"token": token})
		}
		return c.Redirect(http.StatusFound, "/")
	}
}

func index(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newIndexRequestMetrics(c.Request().Context(), logger)
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		accountID, ok := accountFrom(c)
		if !ok {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, "unauthenticated")
			return err
		}

		fetchStart := time.Now()
		snapshot, fetchErr := store.FetchView(ctx, accountID, time.Now().UTC())
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			logger.WithError(fetchErr).Error("fetch view failed")
			err = c.String(http.StatusInternalServerError, "internal error")
			return err
		}
		metrics.SetItems(len(snapshot.Checked), len(snapshot.Unchecked))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, snapshot)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

type createTaskForm struct {
	Content string `form:"content" json:"content"`
}

func createTask(store Storage, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		accountID, ok := accountFrom(c)
		if !ok {
			return c.String(http.StatusUnauthorized, "unauthenticated")
		}

		var form createTaskForm
		if err := bindCreateTask(c, &form); err != nil || strings.TrimSpace(form.Content) == "" {
			return c.String(http.StatusBadRequest, "content is required")
		}
		ctx := c.Request().Context()

		idemKey := c.Request().Header.Get(idempotencyKeyHeader)
		if idemKey != "" && deduper != nil {
			added, err := deduper.Add(ctx, accountID.String(), idemKey)
			if err != nil {
				// Dedupe is best effort; the store stays the source of truth.
				logger.WithError(err).Warn("deduper unavailable")
			} else if !added {
				return c.JSON(http.StatusOK, map[string]bool{"duplicate": true})
			}
		}

		taskID, err := store.CreateTask(ctx, accountID, form.Content)
		if err != nil {
			if idemKey != "" && deduper != nil {
				// Free the key so the client may retry the same request.
				if rmErr := deduper.Remove(ctx, accountID.String(), idemKey); rmErr != nil {
					logger.WithError(rmErr).Warn("deduper rollback failed")
				}
			}
			logger.WithError(err).Error("create task failed")
			return c.String(http.StatusInternalServerError, "internal error")
		}
		return c.JSON(http.StatusCreated, map[string]string{"task_id": taskID.String()})
	}
}

func bindCreateTask(c echo.Context, form *createTaskForm) error {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, createBodyMaxSize))
		dec.DisallowUnknownFields()
		return dec.Decode(form)
	}
	return c.Bind(form)
}

type updateTaskRequest struct {
	State string `json:"state"`
}

func updateTaskState(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		accountID, ok := accountFrom(c)
		if !ok {
			return c.String(http.StatusUnauthorized, "unauthenticated")
		}

		taskID, err := uuid.Parse(c.Param("task_id"))
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid task id")
		}

		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, updateBodyMaxSize))
		dec.DisallowUnknownFields()
		var req updateTaskRequest
		if err := dec.Decode(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		kind, err := domain.ParseEventKind(req.State)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid state")
		}

		if err := store.AppendEvent(c.Request().Context(), accountID, taskID, kind); err != nil {
			// Absence and foreign ownership answer identically so tenants
			// cannot probe each other's task ids.
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
				return c.String(http.StatusNotFound, "not permitted")
			}
			logger.WithError(err).Error("append event failed")
			return c.String(http.StatusInternalServerError, "internal error")
		}
		return c.NoContent(http.StatusOK)
	}
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, "storage unreachable")
		}
		return c.NoContent(http.StatusOK)
	}
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}
