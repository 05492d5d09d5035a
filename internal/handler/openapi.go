package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/auth-api/docs"
)

// OpenAPIDoc returns the swagger document for the auth and health routes.
func OpenAPIDoc(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(docs.SwaggerInfo.ReadDoc()))
}
