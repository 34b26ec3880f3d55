package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/client/session"
	"github.com/atinyakov/PomeloX/internal/decoder"
	"github.com/atinyakov/PomeloX/internal/identity"
	"github.com/atinyakov/PomeloX/internal/models"
	"github.com/atinyakov/PomeloX/internal/permission"
	"github.com/atinyakov/PomeloX/internal/pomelox"
	"github.com/atinyakov/PomeloX/internal/qrcode"
	"github.com/atinyakov/PomeloX/internal/service"
)

var errUsage = errors.New("usage")

// app holds what the commands share. It talks to the PomeloX API directly;
// no PomeloX server of our own is needed.
type app struct {
	client    *pomelox.Client
	baseURL   string
	sess      *session.Session
	mapper    *identity.Mapper
	activity  *service.ActivityService
	volunteer *service.VolunteerService
	prompt    *session.Prompter
	out       io.Writer
	log       *zap.Logger
	now       func() time.Time
}

func newApp(client *pomelox.Client, sess *session.Session, cat identity.Catalog, prompt *session.Prompter, out io.Writer, log *zap.Logger) *app {
	up := service.NewPomeloXUpstream(client)
	mapper := identity.NewMapper(cat)
	return &app{
		client:    client,
		sess:      sess,
		mapper:    mapper,
		activity:  service.NewActivityService(up, decoder.New(decoder.Options{}), nil, log),
		volunteer: service.NewVolunteerService(up, mapper, nil, log),
		prompt:    prompt,
		out:       out,
		log:       log,
		now:       time.Now,
	}
}

type command struct {
	usage string
	help  string
	run   func(a *app, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"register":    {"register", "create an account (asks for the details)", (*app).register},
		"sms":         {"sms <phone>", "request a registration verification code", (*app).sms},
		"login":       {"login [username [password]]", "log in and save the session", (*app).login},
		"logout":      {"logout", "forget the saved session", (*app).logout},
		"whoami":      {"whoami", "show your identity and permission level", (*app).whoami},
		"qr":          {"qr [hash|user]", "generate your identity code (default hash)", (*app).qr},
		"inspect":     {"inspect <code>", "classify and parse a scanned code offline", (*app).inspect},
		"decode":      {"decode <md5>", "recover an activity id from its hash", (*app).decode},
		"permissions": {"permissions <scanner> <target>", "show what a scanner level may see of a target level", (*app).permissions},
		"activities":  {"activities [name]", "list activities", (*app).activities},
		"enroll":      {"enroll <activityId>", "enroll in an activity", (*app).enroll},
		"signinfo":    {"signinfo <activityId>", "show your enrollment status for an activity", (*app).signinfo},
		"signin":      {"signin <activity code>", "check in to an activity from its QR code", (*app).signin},
		"status":      {"status [userId]", "show volunteer check-in status", (*app).status},
		"checkin":     {"checkin <userId>", "check a volunteer in", (*app).checkin},
		"checkout":    {"checkout <userId>", "check a volunteer out", (*app).checkout},
		"hours":       {"hours [userId]", "show accumulated volunteer time", (*app).hours},
		"history":     {"history", "list recently scanned codes", (*app).history},
		"orgs":        {"orgs", "list organizations and departments", (*app).orgs},
	}
}

// run dispatches one command line.
func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if args[0] == "help" {
		a.help()
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help' for a list of commands", args[0])
	}
	err := cmd.run(a, ctx, args[1:])
	if errors.Is(err, errUsage) {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return err
}

func (a *app) help() {
	names := []string{"register", "sms", "login", "logout", "whoami", "qr", "inspect", "decode", "permissions",
		"activities", "enroll", "signinfo", "signin", "status", "checkin", "checkout", "hours", "history", "orgs"}
	fmt.Fprintln(a.out, "Available commands:")
	for _, n := range names {
		fmt.Fprintf(a.out, "  %-32s %s\n", commands[n].usage, commands[n].help)
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describe renders err for the terminal, preferring the API's own wording.
func describe(err error) string {
	var apiErr *pomelox.APIError
	var statusErr *pomelox.StatusError
	if errors.As(err, &apiErr) || errors.As(err, &statusErr) || errors.Is(err, pomelox.ErrNetwork) ||
		errors.Is(err, pomelox.ErrUnauthorized) || errors.Is(err, pomelox.ErrForbidden) {
		title, msg := pomelox.UserMessage(err)
		return fmt.Sprintf("%s: %s (%v)", title, msg, err)
	}
	return err.Error()
}

// saveScans persists the scan history; failures are logged, not returned.
func (a *app) saveScans() {
	if err := a.sess.Save(); err != nil {
		a.log.Warn("cannot save session", zap.Error(err))
	}
}

func (a *app) token() (string, error) {
	return a.sess.RequireToken()
}

func (a *app) self(ctx context.Context) (*models.RemoteUser, error) {
	token, err := a.token()
	if err != nil {
		return nil, err
	}
	return a.client.WithSessionToken(token).UserInfo(ctx, "")
}

func (a *app) login(ctx context.Context, args []string) error {
	var user, pass string
	var err error
	switch len(args) {
	case 0:
		if user, pass, err = a.prompt.Credentials(); err != nil {
			return err
		}
	case 1:
		user = args[0]
		if pass, err = a.prompt.Require("Password: "); err != nil {
			return err
		}
	default:
		user, pass = args[0], args[1]
	}

	res, err := a.client.Login(ctx, user, pass)
	if err != nil {
		return err
	}
	info, err := a.client.WithSessionToken(res.Token).UserInfo(ctx, "")
	if err != nil {
		return err
	}
	a.sess.SetLogin(res.Token, info.UserID.String(), info.UserName, a.baseURL, a.now())
	if err := a.sess.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", info.LegalName, info.UserName)
	return nil
}

func (a *app) sms(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	res, err := a.client.SMSCode(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Verification code sent, bizId %s\n", res.BizID)
	return nil
}

func (a *app) register(ctx context.Context, _ []string) error {
	var r models.Registration
	fields := []struct {
		label    string
		dst      *string
		required bool
	}{
		{"Username: ", &r.UserName, true},
		{"Legal name: ", &r.LegalName, true},
		{"Nickname: ", &r.NickName, false},
		{"Password: ", &r.Password, true},
		{"Phone: ", &r.PhoneNumber, false},
		{"Email: ", &r.Email, false},
		{"Organization id: ", &r.OrgID, false},
		{"Department id: ", &r.DeptID, false},
		{"SMS code: ", &r.VerCode, false},
		{"SMS bizId: ", &r.BizID, false},
		{"Invitation code: ", &r.InvCode, false},
	}
	for _, f := range fields {
		var err error
		if f.required {
			*f.dst, err = a.prompt.Require(f.label)
		} else {
			*f.dst, err = a.prompt.Ask(f.label)
		}
		if err != nil {
			return err
		}
	}
	if err := a.client.Register(ctx, r); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered %s, you can now log in\n", r.UserName)
	return nil
}

func (a *app) logout(context.Context, []string) error {
	a.sess.Clear()
	if err := a.sess.Save(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *app) whoami(ctx context.Context, _ []string) error {
	u, err := a.self(ctx)
	if err != nil {
		return err
	}
	data := a.mapper.Map(u)
	level := identity.Level(data)
	name := permission.DisplayName(level)
	return a.printJSON(map[string]any{
		"identity": data,
		"level":    level,
		"role":     name,
		"color":    permission.Color(level),
	})
}

func (a *app) qr(ctx context.Context, args []string) error {
	kind := "hash"
	if len(args) > 0 {
		kind = args[0]
	}
	u, err := a.self(ctx)
	if err != nil {
		return err
	}
	data := a.mapper.Map(u)

	var code string
	switch kind {
	case "hash":
		code, err = qrcode.GenerateHashToken(data, a.now(), qrcode.SHA256Hasher{})
	case "user":
		code, err = qrcode.EncodeUserCode(data, a.now())
	default:
		return errUsage
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, code)
	return nil
}

func (a *app) inspect(_ context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	code := args[0]
	a.sess.AddScan(code)
	a.saveScans()

	kind := qrcode.Classify(code)
	out := map[string]any{"kind": kind}
	switch kind {
	case qrcode.KindHashIdentity:
		tok, err := qrcode.ParseHashToken(code, a.now())
		if err != nil && !errors.Is(err, qrcode.ErrTokenExpired) {
			return err
		}
		out["token"] = tok
		out["issuedAt"] = tok.IssuedAt().UTC()
		out["expired"] = errors.Is(err, qrcode.ErrTokenExpired)
	case qrcode.KindUserIdentity:
		data, err := qrcode.DecodeUserCode(code)
		if err != nil {
			return err
		}
		out["identity"] = data
		out["verified"] = false
	case qrcode.KindSignedIdentity:
		out["note"] = "signed codes can only be verified by the server holding the secret"
	case qrcode.KindActivity:
		ref, err := qrcode.ParseActivityCode(code)
		if err != nil {
			return err
		}
		out["activity"] = ref
		if ref.NeedsDecoding() {
			out["decoded"] = decoder.Decode(ref.Hash)
		}
	}
	return a.printJSON(out)
}

func (a *app) decode(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	res := a.activity.Decode(ctx, args[0])
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return a.printJSON(res)
}

func (a *app) permissions(_ context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	scanner, ok := permission.Parse(args[0])
	if !ok {
		return fmt.Errorf("unknown level %q", args[0])
	}
	target, ok := permission.Parse(args[1])
	if !ok {
		return fmt.Errorf("unknown level %q", args[1])
	}
	p := permission.Calculate(scanner, target)
	fmt.Fprintln(a.out, permission.Description(p))
	return a.printJSON(p)
}

func (a *app) activities(ctx context.Context, args []string) error {
	q := pomelox.ActivityQuery{PageNum: 1, PageSize: 20, Name: strings.Join(args, " ")}
	client := a.client
	if token, err := a.token(); err == nil {
		client = client.WithSessionToken(token)
		if id, err := strconv.ParseInt(a.sess.UserID, 10, 64); err == nil {
			q.UserID = id
		}
	}
	page, err := client.ActivityList(ctx, q)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d activities\n", page.Total)
	for _, act := range page.Rows {
		fmt.Fprintf(a.out, "  #%-6d %-40s %s ~ %s  [%s]\n", act.ID, act.Title(), act.StartTime, act.EndTime, signLabel(act.SignStatus))
	}
	return nil
}

func signLabel(status int) string {
	switch status {
	case models.SignStatusEnrolled:
		return "enrolled"
	case models.SignStatusSignedIn:
		return "signed in"
	}
	return "not enrolled"
}

func (a *app) enroll(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	activityID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errUsage
	}
	token, err := a.token()
	if err != nil {
		return err
	}
	userID, err := strconv.ParseInt(a.sess.UserID, 10, 64)
	if err != nil {
		return fmt.Errorf("session has no numeric user id: %w", err)
	}
	if err := a.client.WithSessionToken(token).Enroll(ctx, activityID, userID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Enrolled in activity %d\n", activityID)
	return nil
}

func (a *app) signinfo(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	activityID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errUsage
	}
	token, err := a.token()
	if err != nil {
		return err
	}
	userID, err := strconv.ParseInt(a.sess.UserID, 10, 64)
	if err != nil {
		return fmt.Errorf("session has no numeric user id: %w", err)
	}
	status, err := a.client.WithSessionToken(token).SignInfo(ctx, activityID, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Activity %d: %s\n", activityID, signLabel(status))
	return nil
}

func (a *app) signin(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	token, err := a.token()
	if err != nil {
		return err
	}
	a.sess.AddScan(args[0])
	a.saveScans()

	res, err := a.activity.ScanSignIn(ctx, token, args[0])
	if errors.Is(err, service.ErrUndecodable) && res != nil && res.Decoded != nil {
		return fmt.Errorf("%w, possible ids: %v", err, res.Decoded.Guesses)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in to activity %d\n", res.ActivityID)
	return nil
}

// targetUser returns the user id argument, defaulting to the session user.
func (a *app) targetUser(args []string, required bool) (int64, error) {
	raw := a.sess.UserID
	if len(args) > 0 {
		raw = args[0]
	} else if required {
		return 0, errUsage
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errUsage
	}
	return id, nil
}

func (a *app) status(ctx context.Context, args []string) error {
	token, err := a.token()
	if err != nil {
		return err
	}
	userID, err := a.targetUser(args, false)
	if err != nil {
		return err
	}
	state, err := a.volunteer.Status(ctx, token, userID)
	if err != nil {
		return err
	}
	return a.printJSON(state)
}

func (a *app) checkin(ctx context.Context, args []string) error {
	return a.volunteerOp(ctx, args, a.volunteer.CheckIn, "checked in")
}

func (a *app) checkout(ctx context.Context, args []string) error {
	return a.volunteerOp(ctx, args, a.volunteer.CheckOut, "checked out")
}

func (a *app) volunteerOp(ctx context.Context, args []string, op func(context.Context, string, int64, time.Time) (*service.VolunteerState, error), done string) error {
	token, err := a.token()
	if err != nil {
		return err
	}
	userID, err := a.targetUser(args, true)
	if err != nil {
		return err
	}
	if _, err := op(ctx, token, userID, a.now()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User %d %s at %s\n", userID, done, a.now().Format(pomelox.TimeLayout))
	return nil
}

func (a *app) hours(ctx context.Context, args []string) error {
	token, err := a.token()
	if err != nil {
		return err
	}
	userID, err := a.targetUser(args, false)
	if err != nil {
		return err
	}
	rows, err := a.client.WithSessionToken(token).HourList(ctx, pomelox.RecordFilter{UserID: userID})
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Fprintf(a.out, "  %-10d %-12s %s\n", r.UserID, r.LegalName, pomelox.FormatMinutes(r.TotalMinutes))
	}
	stats := pomelox.SummarizeHours(rows)
	fmt.Fprintf(a.out, "%d volunteers, %d active, %d hours in total\n",
		stats.TotalVolunteers, stats.ActiveVolunteers, stats.TotalHours)
	return nil
}

func (a *app) history(context.Context, []string) error {
	if len(a.sess.Scans) == 0 {
		fmt.Fprintln(a.out, "No scans yet")
		return nil
	}
	for i := len(a.sess.Scans) - 1; i >= 0; i-- {
		code := a.sess.Scans[i]
		fmt.Fprintf(a.out, "  %-16s %s\n", qrcode.Classify(code), code)
	}
	return nil
}

func (a *app) orgs(ctx context.Context, _ []string) error {
	token, err := a.token()
	if err != nil {
		return err
	}
	client := a.client.WithSessionToken(token)
	orgs, err := client.OrganizationList(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Organizations:")
	for _, o := range orgs {
		fmt.Fprintf(a.out, "  %-6d %s\n", o.ID, o.Name)
	}
	depts, err := client.DepartmentList(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Departments:")
	printDepartments(a.out, depts, 1)
	return nil
}

func printDepartments(w io.Writer, depts []models.Department, depth int) {
	for _, d := range depts {
		fmt.Fprintf(w, "%s%-6d %s\n", strings.Repeat("  ", depth), d.DeptID, d.DeptName)
		printDepartments(w, d.Children, depth+1)
	}
}
