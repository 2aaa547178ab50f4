package handlers

import (
	"dentalshop/logger"
	"dentalshop/utils"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func init() {
	//驗證錯誤使用json欄位名稱
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	}
}

func respondData(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"message": message,
		"data":    data,
	})
}

func respondList(c *gin.Context, message string, data interface{}, meta utils.PageMeta) {
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    data,
		"meta":    meta,
	})
}

func respondError(c *gin.Context, status int, message string, err error) {
	body := gin.H{"message": message}
	switch {
	case err == nil:
		body["error"] = http.StatusText(status)
	case status >= http.StatusInternalServerError:
		//內部錯誤只寫入log
		logger.FromContext(c.Request.Context()).Error(message, "error", err)
		_ = c.Error(err)
		body["error"] = http.StatusText(status)
	default:
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

func respondDetails(c *gin.Context, message string, details []FieldError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"message": message,
		"error":   "validation failed",
		"details": details,
	})
}

// 綁定錯誤: 驗證失敗附上各欄位說明，JSON格式錯誤直接回傳400
func respondBindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]FieldError, 0, len(validationErrors))
		for _, fe := range validationErrors {
			details = append(details, FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
		}
		respondDetails(c, "請求資料驗證失敗", details)
		return
	}

	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeError):
		respondDetails(c, "請求資料驗證失敗", []FieldError{{Field: typeError.Field, Message: "型別錯誤"}})
	case errors.As(err, &syntaxError):
		respondError(c, http.StatusBadRequest, "請求資料格式錯誤", err)
	default:
		respondError(c, http.StatusBadRequest, "綁定請求資料錯誤", err)
	}
}

func fieldPath(fe validator.FieldError) string {
	namespace := fe.Namespace()
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必填"
	case "email":
		return "信箱格式錯誤"
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("長度至少為%s", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("至少需要%s項", fe.Param())
		}
		return fmt.Sprintf("不可小於%s", fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("長度不可超過%s", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("不可超過%s項", fe.Param())
		}
		return fmt.Sprintf("不可大於%s", fe.Param())
	case "oneof":
		return fmt.Sprintf("必須為以下其中之一: %s", fe.Param())
	case "url":
		return "網址格式錯誤"
	default:
		return fmt.Sprintf("驗證失敗: %s", fe.Tag())
	}
}

// 查無資料回傳404，其他錯誤回傳500
func respondDBError(c *gin.Context, notFoundMessage string, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusNotFound, notFoundMessage, err)
		return
	}
	respondError(c, http.StatusInternalServerError, "資料庫錯誤", err)
}

// 讀取路徑上的數字ID
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "ID格式錯誤", fmt.Errorf("invalid id %q", c.Param(name)))
		return 0, false
	}
	return uint(id), true
}

func parsePagination(c *gin.Context) (utils.Pagination, bool) {
	pagination, err := utils.ParsePagination(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "分頁參數錯誤", err)
		return pagination, false
	}
	return pagination, true
}

// 轉為LIKE搜尋字串
func likePattern(q string) string {
	replacer := strings.NewReplacer("%", "\\%", "_", "\\_")
	return "%" + strings.ToLower(replacer.Replace(strings.TrimSpace(q))) + "%"
}
