package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/memovox/memovox/internal/utils"
)

// PrincipalHeader is injected by the platform's EasyAuth layer in
// front of the app when APP_ENV=azure. It carries base64-encoded JSON
// claims; the app never verifies tokens itself.
const PrincipalHeader = "X-MS-CLIENT-PRINCIPAL"

const principalKey = "principal"

// Principal is the identity the gate resolved for this request.
type Principal struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Groups []string `json:"groups"`
}

type clientPrincipal struct {
	Claims []struct {
		Typ string `json:"typ"`
		Val string `json:"val"`
	} `json:"claims"`
}

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// AccessGate is the dual-mode authorization gate. In local mode every
// request gets a simulated developer identity. In azure mode the
// EasyAuth principal header is decoded and membership in
// requiredGroup is enforced.
func AccessGate(env, requiredGroup, devName, devEmail string, log *logrus.Logger) gin.HandlerFunc {
	if env != "azure" {
		dev := Principal{Name: devName, Email: devEmail, Groups: []string{"LOCAL-DEVELOPER"}}
		return func(c *gin.Context) {
			c.Set(principalKey, dev)
			c.Next()
		}
	}

	return func(c *gin.Context) {
		principal, ok := decodePrincipal(c.GetHeader(PrincipalHeader), log)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "missing or invalid client principal",
			})
			return
		}

		p := Principal{}
		for _, claim := range principal.Claims {
			switch claim.Typ {
			case "groups":
				p.Groups = append(p.Groups, claim.Val)
			case "name":
				p.Name = claim.Val
			case "preferred_username":
				p.Email = claim.Val
			case "emails":
				if p.Email == "" {
					p.Email = claim.Val
				}
			}
		}

		if !slices.Contains(p.Groups, requiredGroup) {
			c.AbortWithStatusJSON(http.StatusForbidden, apiError{
				Code:    utils.CodeForbidden,
				Message: "user is not a member of the authorized group",
			})
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// GetPrincipal returns the identity the gate stored on the context.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// DecodeRawPrincipal exposes the decoded header for the debug route.
func DecodeRawPrincipal(header string) (json.RawMessage, bool) {
	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil || !json.Valid(decoded) {
		return nil, false
	}
	return json.RawMessage(decoded), true
}

func decodePrincipal(header string, log *logrus.Logger) (clientPrincipal, bool) {
	if header == "" {
		return clientPrincipal{}, false
	}
	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		log.WithError(err).Warn("client principal header is not valid base64")
		return clientPrincipal{}, false
	}
	var p clientPrincipal
	if err := json.Unmarshal(decoded, &p); err != nil {
		log.WithError(err).Warn("client principal header is not valid JSON")
		return clientPrincipal{}, false
	}
	return p, true
}
