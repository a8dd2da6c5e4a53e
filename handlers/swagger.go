package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves a Swagger UI page and the OpenAPI document of the
// user API.
//   - GET /swagger/index.html
//   - GET /swagger/doc.json
func RegisterSwagger(r gin.IRoutes) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})
	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>user-service - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "user-service", "version": "v1.0.0" },
  "components": {
    "securitySchemes": {
      "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" },
      "cookie": { "type": "apiKey", "in": "cookie", "name": "accessToken" }
    }
  },
  "paths": {
    "/api/v1/users/register": {
      "post": {
        "summary": "Register a user with an avatar and an optional cover image",
        "requestBody": { "content": { "multipart/form-data": { "schema": { "type": "object", "required": ["fullName", "email", "username", "password", "avatar"], "properties": { "fullName": { "type": "string" }, "email": { "type": "string" }, "username": { "type": "string" }, "password": { "type": "string" }, "avatar": { "type": "string", "format": "binary" }, "coverImage": { "type": "string", "format": "binary" } } } } } },
        "responses": { "201": { "description": "user created" }, "400": { "description": "invalid input" }, "409": { "description": "email or username taken" }, "429": { "description": "rate limited" }, "502": { "description": "media upload failed" } }
      }
    },
    "/api/v1/users/login": {
      "post": {
        "summary": "Log in with username or email",
        "requestBody": { "content": { "application/json": { "schema": { "type": "object", "properties": { "username": { "type": "string" }, "email": { "type": "string" }, "password": { "type": "string" } } } } } },
        "responses": { "200": { "description": "token pair issued and set as cookies" }, "401": { "description": "invalid credentials" }, "404": { "description": "unknown user" }, "429": { "description": "rate limited" } }
      }
    },
    "/api/v1/users/refresh-token": {
      "post": {
        "summary": "Rotate the refresh token (cookie, X-Refresh-Token header, JSON body or bearer)",
        "responses": { "200": { "description": "new token pair" }, "401": { "description": "invalid, expired or already used refresh token" } }
      },
      "get": { "summary": "Same as POST", "responses": { "200": { "description": "new token pair" }, "401": { "description": "invalid refresh token" } } }
    },
    "/api/v1/users/logout": {
      "get": { "summary": "Revoke the session and clear cookies", "security": [{ "bearer": [] }, { "cookie": [] }], "responses": { "200": { "description": "logged out" }, "401": { "description": "unauthorized" } } }
    },
    "/api/v1/users/change-password": {
      "put": {
        "summary": "Change the password",
        "security": [{ "bearer": [] }, { "cookie": [] }],
        "requestBody": { "content": { "application/json": { "schema": { "type": "object", "properties": { "oldPassword": { "type": "string" }, "newPassword": { "type": "string" } } } } } },
        "responses": { "200": { "description": "password changed" }, "400": { "description": "wrong old password or weak new password" } }
      }
    },
    "/api/v1/users/profile": {
      "get": { "summary": "Current user (alias: /api/v1/users/get-user)", "security": [{ "bearer": [] }, { "cookie": [] }], "responses": { "200": { "description": "user" }, "401": { "description": "unauthorized" } } }
    },
    "/api/v1/users/update-profile": {
      "put": {
        "summary": "Update full name and email (alias: /api/v1/users/update-account)",
        "security": [{ "bearer": [] }, { "cookie": [] }],
        "requestBody": { "content": { "application/json": { "schema": { "type": "object", "properties": { "fullName": { "type": "string" }, "email": { "type": "string" } } } } } },
        "responses": { "200": { "description": "updated user" }, "409": { "description": "email taken" } }
      }
    },
    "/api/v1/users/update-media": {
      "put": {
        "summary": "Replace avatar and/or cover image (alias: /api/v1/users/update-avatar-cover)",
        "security": [{ "bearer": [] }, { "cookie": [] }],
        "requestBody": { "content": { "multipart/form-data": { "schema": { "type": "object", "properties": { "avatar": { "type": "string", "format": "binary" }, "coverImage": { "type": "string", "format": "binary" } } } } } },
        "responses": { "200": { "description": "updated user" }, "400": { "description": "no file provided" }, "502": { "description": "media upload failed" } }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
