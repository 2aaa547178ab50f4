package handlers

import (
	"dentalshop/logger"
	"dentalshop/mail"
	"dentalshop/metrics"
	"dentalshop/middleware"
	"dentalshop/models"
	"dentalshop/utils"
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"net/http"
	"strings"
	"time"
)

const (
	verificationTTL     = 24 * time.Hour
	loginAttemptsWindow = 15 * time.Minute
)

var errInvalidCredentials = errors.New("帳號或密碼錯誤")

type registerRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Email      string `json:"email" binding:"required,email,max=255"`
	Password   string `json:"password" binding:"required"`
	Phone      string `json:"phone" binding:"max=50"`
	ClinicName string `json:"clinicName" binding:"max=255"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	Name            *string `json:"name" binding:"omitempty,min=1,max=100"`
	Phone           *string `json:"phone" binding:"omitempty,max=50"`
	ClinicName      *string `json:"clinicName" binding:"omitempty,max=255"`
	Address         *string `json:"address" binding:"omitempty,max=1000"`
	Email           string  `json:"email" binding:"omitempty,email,max=255"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func loginAttemptsKey(email string) string {
	return "login:attempts:" + normalizeEmail(email)
}

// 檢查Email是否重複，已刪除的帳號也算
func IsUserEmailExists(db *gorm.DB, email string, excludeID uint) (bool, error) {
	var count int64
	err := db.Unscoped().
		Model(&models.User{}).
		Where("email = ? AND id <> ?", normalizeEmail(email), excludeID).
		Count(&count).
		Error
	return count > 0, err
}

func newVerificationToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// 產生新的驗證碼並寄出驗證信
func sendVerification(c *gin.Context, db *gorm.DB, svc *Services, user *models.User) error {
	expiresAt := time.Now().Add(verificationTTL)
	user.VerificationToken = newVerificationToken()
	user.VerificationExpiresAt = &expiresAt
	err := db.Model(user).Updates(map[string]interface{}{
		"verification_token":      user.VerificationToken,
		"verification_expires_at": expiresAt,
	}).Error
	if err != nil {
		return err
	}

	link := strings.TrimRight(svc.Config.App.FrontendURL, "/") + "/verify-email?token=" + user.VerificationToken
	msg, err := mail.VerificationMessage(user.Email, mail.VerificationData{
		StoreName: svc.Config.App.Name,
		Name:      user.Name,
		Link:      link,
	})
	svc.sendMail(c.Request.Context(), msg, err)
	return nil
}

// 註冊使用者帳戶
func RegisterHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	//檢查密碼是否合法
	if !utils.ValidatePassword(req.Password) {
		respondDetails(c, "註冊失敗:不合法的密碼", []FieldError{{
			Field:   "password",
			Message: "需為8-50字元，包含大小寫字母、數字與符號且不可有空白",
		}})
		return
	}

	//檢查Email是否重複
	exists, err := IsUserEmailExists(db, req.Email, 0)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "註冊失敗:檢查信箱失敗", err)
		return
	}
	if exists {
		respondError(c, http.StatusBadRequest, "註冊失敗:信箱已被使用", errors.New("email already registered"))
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "無法生成Hashed密碼", err)
		return
	}

	newUser := models.User{
		Name:          strings.TrimSpace(req.Name),
		Email:         normalizeEmail(req.Email),
		Password:      hashedPassword,
		Role:          models.RoleCustomer,
		Phone:         req.Phone,
		ClinicName:    req.ClinicName,
		Status:        models.UserStatusActive,
		EmailVerified: !svc.Config.Auth.RequireVerifiedEmail,
	}
	if err := db.Create(&newUser).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "無法儲存使用者資料至資料庫", err)
		return
	}

	if !newUser.EmailVerified {
		if err := sendVerification(c, db, svc, &newUser); err != nil {
			logger.FromContext(c.Request.Context()).Error("產生驗證碼失敗", "user_id", newUser.ID, "error", err)
		}
	}

	respondData(c, http.StatusCreated, "使用者已成功註冊", newUser)
}

// 驗證信箱
func VerifyEmailHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	var req struct {
		Token string `json:"token" binding:"required,max=64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var user models.User
	err := db.Where("verification_token = ?", req.Token).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusBadRequest, "驗證連結無效", errors.New("invalid verification token"))
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "資料庫錯誤", err)
		return
	}
	if user.VerificationExpiresAt == nil || time.Now().After(*user.VerificationExpiresAt) {
		respondError(c, http.StatusBadRequest, "驗證連結已過期", errors.New("verification token expired"))
		return
	}

	err = db.Model(&user).Updates(map[string]interface{}{
		"email_verified":          true,
		"verification_token":      "",
		"verification_expires_at": nil,
	}).Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "驗證信箱失敗", err)
		return
	}

	msg, err := mail.WelcomeMessage(user.Email, mail.WelcomeData{
		StoreName: svc.Config.App.Name,
		Name:      user.Name,
		ShopURL:   svc.Config.App.FrontendURL,
	})
	svc.sendMail(c.Request.Context(), msg, err)

	respondData(c, http.StatusOK, "信箱驗證成功", user)
}

// 重新寄送驗證信，無論帳號是否存在皆回傳相同結果
func ResendVerificationHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var user models.User
	err := db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	if err == nil && !user.EmailVerified {
		if err := sendVerification(c, db, svc, &user); err != nil {
			logger.FromContext(c.Request.Context()).Error("產生驗證碼失敗", "user_id", user.ID, "error", err)
		}
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.FromContext(c.Request.Context()).Error("查詢使用者失敗", "error", err)
	}

	respondData(c, http.StatusOK, "若此信箱已註冊且尚未驗證，將會收到驗證信", nil)
}

func recordLoginFailure(c *gin.Context, svc *Services, email string) {
	metrics.LoginAttempts.WithLabelValues("failure").Inc()
	if _, err := svc.Cache.Incr(c.Request.Context(), loginAttemptsKey(email), loginAttemptsWindow); err != nil {
		logger.FromContext(c.Request.Context()).Warn("記錄登入失敗次數失敗", "error", err)
	}
}

func LoginHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	//檢查是否已經登入
	if _, ok := middleware.CurrentUserID(c); ok {
		respondData(c, http.StatusOK, "已經登入", nil)
		return
	}

	//從請求擷取帳號和密碼
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	settings, err := loadSettings(db)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "讀取商店設定失敗", err)
		return
	}

	//短時間內失敗次數過多
	maxAttempts := settings.Int(models.SettingMaxLoginAttempts, 5)
	if svc.Cache.Count(ctx, loginAttemptsKey(req.Email)) >= int64(maxAttempts) {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		c.Header("Retry-After", "900")
		respondError(c, http.StatusTooManyRequests, "登入失敗次數過多，請稍後再試", errors.New("too many login attempts"))
		return
	}

	//檢查是否有此帳號
	var user models.User
	err = db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		recordLoginFailure(c, svc, req.Email)
		respondError(c, http.StatusUnauthorized, "登入失敗", errInvalidCredentials)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "資料庫錯誤", err)
		return
	}

	//檢查密碼是否正確
	if !utils.CheckPassword(user.Password, req.Password) {
		recordLoginFailure(c, svc, req.Email)
		respondError(c, http.StatusUnauthorized, "登入失敗", errInvalidCredentials)
		return
	}

	if user.Status != models.UserStatusActive {
		respondError(c, http.StatusUnauthorized, "帳號已停權", errors.New("account suspended"))
		return
	}
	if svc.Config.Auth.RequireVerifiedEmail && !user.IsAdmin() && !user.EmailVerified {
		respondError(c, http.StatusUnauthorized, "請先完成信箱驗證", errors.New("email not verified"))
		return
	}

	//生成JWT Token，有效期限依安全設定
	now := time.Now()
	tokenExpiredTime := now.Add(time.Duration(settings.Int(models.SettingSessionTimeoutHours, 24)) * time.Hour)
	token, err := svc.JWT.GenerateToken(user.ID, user.Role, tokenExpiredTime)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "生成JWT Token錯誤", err)
		return
	}

	//儲存LoginToken
	loginToken := models.LoginToken{
		Token:          token,
		ExpirationTime: tokenExpiredTime,
		UserID:         user.ID,
		Role:           user.Role,
		UserAgent:      truncate(c.Request.UserAgent(), 255),
		IP:             c.ClientIP(),
	}
	if err := db.Create(&loginToken).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "儲存Login Token失敗", err)
		return
	}

	user.LastLoginAt = &now
	if err := db.Model(&user).Update("last_login_at", now).Error; err != nil {
		logger.FromContext(ctx).Warn("更新最後登入時間失敗", "user_id", user.ID, "error", err)
	}
	if err := svc.Cache.Del(ctx, loginAttemptsKey(req.Email)); err != nil {
		logger.FromContext(ctx).Warn("清除登入失敗次數失敗", "error", err)
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()

	//成功登入 回傳Token
	c.Header("Authorization", "Bearer "+token)
	respondData(c, http.StatusOK, "成功登入", gin.H{
		"token":     token,
		"expiresAt": tokenExpiredTime,
		"user":      user,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func LogOutHandler(c *gin.Context, db *gorm.DB) {
	tokenID := middleware.CurrentTokenID(c)

	//刪除此LoginToken
	result := db.Unscoped().Delete(&models.LoginToken{}, tokenID)
	if result.Error != nil {
		respondError(c, http.StatusInternalServerError, "資料庫錯誤", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusBadRequest, "找不到此token或已登出", nil)
		return
	}

	c.Header("Authorization", "")
	respondData(c, http.StatusOK, "成功登出", nil)
}

// 查詢使用者資料
func GetUserProfileHandler(c *gin.Context, db *gorm.DB) {
	userID, _ := middleware.CurrentUserID(c)

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		respondDBError(c, "使用者不存在", err)
		return
	}

	respondData(c, http.StatusOK, "成功查詢使用者資料", user)
}

// 變更使用者資料，變更信箱或密碼需要目前密碼
func UpdateUserProfileHandler(c *gin.Context, db *gorm.DB) {
	userID, _ := middleware.CurrentUserID(c)

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		respondDBError(c, "使用者不存在", err)
		return
	}

	email := normalizeEmail(req.Email)
	changeEmail := email != "" && email != user.Email
	changePassword := req.NewPassword != ""
	if (changeEmail || changePassword) && !utils.CheckPassword(user.Password, req.CurrentPassword) {
		respondError(c, http.StatusBadRequest, "目前密碼錯誤", errInvalidCredentials)
		return
	}

	if changePassword {
		if !utils.ValidatePassword(req.NewPassword) {
			respondDetails(c, "不合法的新密碼", []FieldError{{
				Field:   "newPassword",
				Message: "需為8-50字元，包含大小寫字母、數字與符號且不可有空白",
			}})
			return
		}
		hashedPassword, err := utils.HashPassword(req.NewPassword)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "無法生成Hashed密碼", err)
			return
		}
		user.Password = hashedPassword
	}

	if changeEmail {
		exists, err := IsUserEmailExists(db, email, user.ID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "檢查信箱失敗", err)
			return
		}
		if exists {
			respondError(c, http.StatusBadRequest, "信箱已被使用", errors.New("email already registered"))
			return
		}
		user.Email = email
	}

	//如果使用者有提供資料則覆蓋(包含空字串)
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.ClinicName != nil {
		user.ClinicName = *req.ClinicName
	}
	if req.Address != nil {
		user.Address = *req.Address
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		if !changePassword {
			return nil
		}
		//變更密碼後其他裝置需重新登入
		return tx.Unscoped().
			Where("user_id = ? AND id <> ?", user.ID, middleware.CurrentTokenID(c)).
			Delete(&models.LoginToken{}).
			Error
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "修改使用者資料失敗", err)
		return
	}

	respondData(c, http.StatusOK, "成功修改使用者資料", user)
}
