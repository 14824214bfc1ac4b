package amazon

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cartbridge/cartbridge/internal/shared/types"
)

// CheckLogin probes the account greeting in the site header. The probe
// fails closed: any load failure or unrecognizable page state reports
// logged out.
func (d *Driver) CheckLogin(ctx context.Context) (*types.Result, error) {
	doc, err := d.fetch(ctx, "/", nil)
	if err != nil {
		d.logger.Warn("Login probe failed", zap.Error(err))
		return types.Success("login probe failed, assuming logged out",
			map[string]interface{}{"loggedIn": false}), nil
	}

	greeting := firstText(doc.Selection,
		"#nav-link-accountList-nav-line-1",
		"#nav-link-accountList .nav-line-1",
	)

	loggedIn := false
	switch {
	case greeting == "":
		// Greeting affordance missing entirely; fail closed.
	case strings.Contains(strings.ToLower(greeting), "sign in"):
	case strings.HasPrefix(strings.ToLower(greeting), "hello"):
		loggedIn = true
	}

	d.logger.Debug("Login probe",
		zap.String("greeting", greeting),
		zap.Bool("logged_in", loggedIn),
	)

	return types.Success("login state checked",
		map[string]interface{}{"loggedIn": loggedIn}), nil
}
