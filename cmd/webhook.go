package cmd

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/notify"
	"github.com/manav03panchal/couponvault/internal/validate"
)

// Webhook command flags.
var (
	webhookAddFlagType     string
	webhookAddFlagTemplate string
	webhookRemoveFlagForce bool
	webhookTestFlagAll     bool
)

const webhookTestTimeout = 30 * time.Second

// webhookCmd represents the webhook command.
var webhookCmd = &cobra.Command{
	Use:     "webhook [command]",
	Aliases: []string{"w", "wh", "hook"},
	Short:   "Configure notification webhooks",
	Long: `Configure webhooks for Discord, Slack, Teams, or custom endpoints.

Webhooks receive the daily reminder about coupons that are about to expire.

Examples:
  couponvault webhook add phone https://discord.com/api/webhooks/...
  couponvault webhook add team https://hooks.slack.com/services/...
  couponvault webhook list
  couponvault webhook test phone
  couponvault webhook disable team
  couponvault webhook remove phone`,
	RunE: runWebhookList,
}

// webhookAddCmd adds a new webhook.
var webhookAddCmd = &cobra.Command{
	Use:   "add NAME URL",
	Short: "Add a new webhook",
	Long: `Add a webhook for receiving reminders.

The webhook type is auto-detected from the URL:
  - Discord: discord.com/api/webhooks/...
  - Slack:   hooks.slack.com/services/...
  - Teams:   outlook.office.com/webhook/...
  - Generic: Any other URL

Generic webhooks accept a Go text/template for the body, for example:
  --template '{"text": "{{.Title}}: {{.Message}}"}'

Examples:
  couponvault webhook add phone https://discord.com/api/webhooks/123/abc
  couponvault webhook add home https://example.com/hook --type generic`,
	Args: cobra.ExactArgs(2),
	RunE: runWebhookAdd,
}

// webhookListCmd lists all webhooks.
var webhookListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all webhooks",
	Args:    cobra.NoArgs,
	RunE:    runWebhookList,
}

// webhookTestCmd tests a webhook.
var webhookTestCmd = &cobra.Command{
	Use:   "test [NAME]",
	Short: "Send a test notification",
	Long: `Send a test notification to verify webhook configuration.

Examples:
  couponvault webhook test phone
  couponvault webhook test --all`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeWebhookNames,
	RunE:              runWebhookTest,
}

// webhookRemoveCmd removes a webhook.
var webhookRemoveCmd = &cobra.Command{
	Use:               "remove NAME",
	Aliases:           []string{"rm", "delete"},
	Short:             "Remove a webhook",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeWebhookNames,
	RunE:              runWebhookRemove,
}

var webhookEnableCmd = &cobra.Command{
	Use:               "enable NAME",
	Short:             "Enable a webhook",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeWebhookNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWebhookEnabled(cmd.Context(), args[0], true)
	},
}

var webhookDisableCmd = &cobra.Command{
	Use:               "disable NAME",
	Short:             "Disable a webhook",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeWebhookNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWebhookEnabled(cmd.Context(), args[0], false)
	},
}

func init() {
	webhookAddCmd.Flags().StringVarP(&webhookAddFlagType, "type", "t", "",
		"Webhook type: discord, slack, teams, generic (auto-detected from URL if not specified)")
	webhookAddCmd.Flags().StringVar(&webhookAddFlagTemplate, "template", "",
		"Body template for generic webhooks")
	_ = webhookAddCmd.RegisterFlagCompletionFunc("type", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return model.ValidWebhookTypes(), cobra.ShellCompDirectiveNoFileComp
	})

	webhookRemoveCmd.Flags().BoolVar(&webhookRemoveFlagForce, "force", false,
		"Skip confirmation")

	webhookTestCmd.Flags().BoolVarP(&webhookTestFlagAll, "all", "a", false,
		"Test all enabled webhooks")

	webhookCmd.AddCommand(webhookAddCmd)
	webhookCmd.AddCommand(webhookListCmd)
	webhookCmd.AddCommand(webhookTestCmd)
	webhookCmd.AddCommand(webhookRemoveCmd)
	webhookCmd.AddCommand(webhookEnableCmd)
	webhookCmd.AddCommand(webhookDisableCmd)

	rootCmd.AddCommand(webhookCmd)
}

func runWebhookAdd(cmd *cobra.Command, args []string) error {
	name, webhookURL := args[0], strings.TrimSpace(args[1])

	if err := validate.WebhookName(name); err != nil {
		return err
	}
	if err := validate.URL(webhookURL); err != nil {
		return err
	}
	if err := validate.WebhookType(webhookAddFlagType); err != nil {
		return err
	}

	webhookType := webhookAddFlagType
	if webhookType == "" {
		webhookType = model.DetectWebhookType(webhookURL)
	}
	if webhookAddFlagTemplate != "" {
		if webhookType != model.WebhookTypeGeneric {
			return errors.NewUserError("Templates only apply to generic webhooks",
				"Add --type generic, or drop --template")
		}
		if err := notify.ValidateTemplate(webhookAddFlagTemplate); err != nil {
			return errors.NewUserErrorWithField("template", webhookAddFlagTemplate,
				"Invalid template: "+err.Error(),
				"Templates use Go text/template syntax, e.g. {{.Title}}")
		}
	}

	webhook := model.NewWebhook(name, webhookType, webhookURL)
	webhook.Template = webhookAddFlagTemplate
	if err := ctx.Webhooks.Create(cmd.Context(), webhook); err != nil {
		if stderrors.Is(err, errors.ErrDuplicateKey) {
			return errors.NewUserErrorWithField("name", name,
				fmt.Sprintf("Webhook %q already exists", name),
				"Pick another name or remove it first: couponvault webhook remove "+name)
		}
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]any{
			"name":       webhook.Name,
			"type":       webhook.Type,
			"url":        webhook.MaskedURL(),
			"enabled":    webhook.Enabled,
			"created_at": webhook.CreatedAt,
		})
	}
	if ctx.IsPlain() {
		ctx.Formatter.Println(webhook.Name)
		return nil
	}

	cli := ctx.CLIFormatter()
	cli.Success("Added webhook: " + name)
	cli.Printf("  Type: %s\n", webhook.Type)
	cli.Printf("  URL:  %s\n", webhook.MaskedURL())
	cli.Muted("Test with: couponvault webhook test " + name)
	return nil
}

func runWebhookList(cmd *cobra.Command, args []string) error {
	hooks, err := ctx.Webhooks.List(cmd.Context())
	if err != nil {
		return err
	}

	switch {
	case ctx.IsJSON():
		masked := make([]*model.Webhook, len(hooks))
		for i, w := range hooks {
			c := *w
			c.URL = w.MaskedURL()
			masked[i] = &c
		}
		return ctx.JSONFormatter().PrintWebhooks(masked)
	case ctx.IsPlain():
		for _, w := range hooks {
			ctx.Formatter.Printf("%s\t%s\t%t\n", w.Name, w.Type, w.Enabled)
		}
	default:
		ctx.CLIFormatter().PrintWebhooks(hooks)
	}
	return nil
}

func runWebhookTest(cmd *cobra.Command, args []string) error {
	dispatcher := notify.NewDispatcher(ctx.Webhooks)
	c, cancel := context.WithTimeout(cmd.Context(), webhookTestTimeout)
	defer cancel()

	var names []string
	switch {
	case webhookTestFlagAll:
		hooks, err := ctx.Webhooks.ListEnabled(c)
		if err != nil {
			return err
		}
		if len(hooks) == 0 {
			return errors.NewUserError("No enabled webhooks to test",
				"Add one with: couponvault webhook add NAME URL")
		}
		for _, w := range hooks {
			names = append(names, w.Name)
		}
	case len(args) == 1:
		names = args
	default:
		return errors.NewUserError("Webhook name required",
			"Name a webhook or pass --all: couponvault webhook test --all")
	}

	results := make([]notify.DispatchResult, 0, len(names))
	for _, name := range names {
		results = append(results, dispatcher.TestWebhook(c, name))
	}

	if ctx.IsJSON() {
		out := make([]map[string]any, 0, len(results))
		for _, r := range results {
			out = append(out, map[string]any{
				"webhook":     r.WebhookName,
				"success":     r.Success,
				"status_code": r.StatusCode,
				"duration_ms": r.Duration.Milliseconds(),
				"error":       errorString(r.Error),
			})
		}
		return ctx.Formatter.JSON(map[string]any{"results": out})
	}

	cli := ctx.CLIFormatter()
	failed := 0
	for _, r := range results {
		if r.Success {
			cli.Success(fmt.Sprintf("%s: delivered in %dms", r.WebhookName, r.Duration.Milliseconds()))
			continue
		}
		failed++
		cli.Error(fmt.Sprintf("%s: %s", r.WebhookName, errorString(r.Error)))
	}
	if failed > 0 {
		return errors.WithCategory(
			fmt.Errorf("%d of %d webhook test(s) failed", failed, len(results)),
			errors.CategoryExternal)
	}
	return nil
}

func runWebhookRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	if _, err := ctx.Webhooks.Get(cmd.Context(), name); err != nil {
		return err
	}

	if !webhookRemoveFlagForce && !ctx.IsJSON() {
		if !confirm(fmt.Sprintf("Remove webhook %q?", name)) {
			ctx.CLIFormatter().Muted("Cancelled.")
			return nil
		}
	}

	if err := ctx.Webhooks.Delete(cmd.Context(), name); err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]any{"status": "removed", "webhook": name})
	}
	ctx.CLIFormatter().Success("Removed webhook: " + name)
	return nil
}

func setWebhookEnabled(c context.Context, name string, enabled bool) error {
	if err := ctx.Webhooks.SetEnabled(c, name, enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]any{"status": state, "webhook": name})
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Webhook %s %s", name, state))
	return nil
}

// confirm asks a yes/no question on stdin. Anything but y/yes is no.
func confirm(question string) bool {
	ctx.Formatter.Printf("%s [y/N] ", question)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
