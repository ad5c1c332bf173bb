package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lupppig/notifyq/internal/domain"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Read and change user channel preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get <userId>",
	Short: "Show a user's effective preferences",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		res, err := newAPIClient().Preferences(ctx, args[0])
		if err != nil {
			return err
		}
		return printPreferences(res)
	},
}

var prefsSetCmd = &cobra.Command{
	Use:     "set <userId> <channel:category=on|off>...",
	Short:   "Update preferences in one atomic batch",
	Example: `  notifyctl prefs set u1 sms:wallet=on push:rewards=off`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		updates, err := parsePreferenceArgs(args[1:])
		if err != nil {
			return err
		}

		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		res, err := newAPIClient().UpdatePreferences(ctx, args[0], updates)
		if err != nil {
			return err
		}
		return printPreferences(res)
	},
}

// parsePreferenceArgs turns channel:category=bool pairs into updates.
func parsePreferenceArgs(args []string) ([]domain.PreferenceUpdate, error) {
	updates := make([]domain.PreferenceUpdate, 0, len(args))
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%q: expected channel:category=on|off", arg)
		}
		channel, category, ok := strings.Cut(key, ":")
		if !ok || channel == "" || category == "" {
			return nil, fmt.Errorf("%q: expected channel:category=on|off", arg)
		}

		enabled, err := parseToggle(val)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}
		updates = append(updates, domain.PreferenceUpdate{
			Channel:       strings.ToLower(channel),
			EventCategory: category,
			Enabled:       &enabled,
		})
	}
	return updates, nil
}

func parseToggle(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes", "enable", "enabled":
		return true, nil
	case "off", "no", "disable", "disabled":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func printPreferences(res preferencesResult) error {
	if IsJSONOutput() {
		return printJSON(res)
	}

	onOff := func(b bool) string {
		if b {
			return sentStyle.Render("on")
		}
		return failedStyle.Render("off")
	}

	fmt.Println(titleStyle.Render("Preferences") + " " + idStyle.Render(res.UserID))
	fmt.Printf("  email  %s\n", onOff(res.Preferences.Email))
	fmt.Printf("  sms    %s\n", onOff(res.Preferences.SMS))
	fmt.Printf("  push   %s\n", onOff(res.Preferences.Push))
	return nil
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd)
}
