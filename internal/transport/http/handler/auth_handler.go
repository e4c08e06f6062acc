package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fortirent-auth/internal/service"
	httpez "fortirent-auth/internal/transport/http/ez"
	mdw "fortirent-auth/internal/transport/http/middleware"
)

// MountAuthActions public 挂公开接口，authed 必须已经过 AuthSession
func MountAuthActions(public, authed *gin.RouterGroup, svc *service.AuthService, l *zap.Logger) {
	ezPublic := httpez.New(public, l)
	ezAuth := httpez.New(authed, l)

	// --- POST /auth/register ---
	type registerIn struct {
		FullName        string `json:"fullName"`
		Email           string `json:"email"`
		PhoneNumber     string `json:"phoneNumber"`
		Role            string `json:"role"`
		Stakeholder     string `json:"stakeholder"` // 旧前端字段名
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	httpez.RegisterAction(ezPublic, httpez.Action[registerIn]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *registerIn) (httpez.Out, error) {
			role := in.Role
			if role == "" {
				role = in.Stakeholder
			}
			_, err := svc.Register(c.Request.Context(), service.RegisterInput{
				FullName:        in.FullName,
				Email:           in.Email,
				PhoneNumber:     in.PhoneNumber,
				Role:            role,
				Password:        in.Password,
				ConfirmPassword: in.ConfirmPassword,
			})
			if err != nil {
				return httpez.Out{}, err
			}
			return httpez.Out{Status: http.StatusCreated, Message: "User registered successfully"}, nil
		},
	})

	// --- POST /auth/login ---
	type loginIn struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	httpez.RegisterAction(ezPublic, httpez.Action[loginIn]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (httpez.Out, error) {
			s, err := svc.Login(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				return httpez.Out{}, err
			}
			return httpez.Out{Message: "Login successful", Data: gin.H{"token": s.Token, "user": s.User}}, nil
		},
	})

	// --- POST /auth/find-id ---
	type findIDIn struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		Role        string `json:"role"`
		Stakeholder string `json:"stakeholder"`
	}
	httpez.RegisterAction(ezPublic, httpez.Action[findIDIn]{
		Method: http.MethodPost,
		Path:   "/auth/find-id",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *findIDIn) (httpez.Out, error) {
			role := in.Role
			if role == "" {
				role = in.Stakeholder
			}
			id, err := svc.FindUserIDByCredentials(c.Request.Context(), in.Email, in.Password, role)
			if err != nil {
				return httpez.Out{}, err
			}
			return httpez.Out{Data: gin.H{"userId": id}}, nil
		},
	})

	// --- POST /auth/password-reset-request ---
	type resetRequestIn struct {
		Email string `json:"email"`
	}
	httpez.RegisterAction(ezPublic, httpez.Action[resetRequestIn]{
		Method: http.MethodPost,
		Path:   "/auth/password-reset-request",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *resetRequestIn) (httpez.Out, error) {
			msg, err := svc.RequestPasswordReset(c.Request.Context(), in.Email)
			if err != nil {
				return httpez.Out{}, err
			}
			return httpez.Out{Message: msg}, nil
		},
	})

	// --- POST /auth/password-reset/:token ---
	type resetIn struct {
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	httpez.RegisterAction(ezPublic, httpez.Action[resetIn]{
		Method: http.MethodPost,
		Path:   "/auth/password-reset/:token",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *resetIn) (httpez.Out, error) {
			if err := svc.ResetPassword(c.Request.Context(), c.Param("token"), in.NewPassword, in.ConfirmPassword); err != nil {
				return httpez.Out{}, err
			}
			return httpez.Out{Message: "Password has been reset successfully."}, nil
		},
	})

	// --- GET /auth/me（鉴权） ---
	httpez.RegisterAction(ezAuth, httpez.Action[struct{}]{
		Method: http.MethodGet,
		Path:   "/auth/me",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (httpez.Out, error) {
			u, err := svc.GetCurrentUser(mdw.CurrentUser(c))
			if err != nil {
				return httpez.Out{}, err
			}
			return httpez.Out{Data: gin.H{"user": u}}, nil
		},
	})

	// --- POST /auth/change-password（鉴权） ---
	type changeIn struct {
		CurrentPassword    string `json:"currentPassword"`
		NewPassword        string `json:"newPassword"`
		ConfirmNewPassword string `json:"confirmNewPassword"`
	}
	httpez.RegisterAction(ezAuth, httpez.Action[changeIn]{
		Method: http.MethodPost,
		Path:   "/auth/change-password",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *changeIn) (httpez.Out, error) {
			err := svc.ChangePassword(c.Request.Context(), currentUserID(c), service.ChangePasswordInput{
				CurrentPassword:    in.CurrentPassword,
				NewPassword:        in.NewPassword,
				ConfirmNewPassword: in.ConfirmNewPassword,
			})
			if err != nil {
				return httpez.Out{}, err
			}
			return httpez.Out{Message: "Password changed successfully!"}, nil
		},
	})

	// --- PUT /auth/profile（鉴权）：字段缺省即不修改 ---
	type profileIn struct {
		FullName    *string `json:"fullName"`
		Email       *string `json:"email"`
		PhoneNumber *string `json:"phoneNumber"`
	}
	httpez.RegisterAction(ezAuth, httpez.Action[profileIn]{
		Method: http.MethodPut,
		Path:   "/auth/profile",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *profileIn) (httpez.Out, error) {
			res, err := svc.UpdateProfile(c.Request.Context(), currentUserID(c), service.ProfileInput{
				FullName:    in.FullName,
				Email:       in.Email,
				PhoneNumber: in.PhoneNumber,
			})
			if err != nil {
				return httpez.Out{}, err
			}
			data := gin.H{"user": res.User}
			if res.Token != "" {
				data["token"] = res.Token
			}
			return httpez.Out{Message: "Profile updated successfully!", Data: data}, nil
		},
	})
}

func currentUserID(c *gin.Context) string {
	if u := mdw.CurrentUser(c); u != nil {
		return u.ID
	}
	return ""
}
