package consentflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/kitewire/consentflow"
	"github.com/kitewire/consentflow/internal/sandbox"
)

// ExampleController walks a complete consent journey against the built-in
// sandbox gateway. In production the sandbox client is replaced by the
// aahttp adapter pointed at a real AA gateway.
func ExampleController() {
	ctrl, err := consentflow.New(sandbox.NewClient())
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	id := "demo-consent-handle"

	s, err := ctrl.StartJourney(ctx, id)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(s.Stage)

	s, _ = ctrl.SubmitCredentials(ctx, id, "demo", "9876543210")
	fmt.Println(s.Stage)

	s, _ = ctrl.VerifyLoginOTP(ctx, id, sandbox.OTP)
	fmt.Println(s.Stage, len(s.Institutions))

	s, _ = ctrl.SelectInstitution(ctx, id, "sandbox-fip-1")
	fmt.Println(s.Stage)

	s, _ = ctrl.DiscoverAccounts(ctx, id)
	fmt.Println(s.Stage, len(s.DiscoveredAccounts))

	s, _ = ctrl.SelectAccountsAndLink(ctx, id, []string{"sandbox-acc-1", "sandbox-acc-2"})
	fmt.Println(s.Stage)

	s, _ = ctrl.VerifyLinkingOTP(ctx, id, sandbox.OTP)
	fmt.Println(s.Stage, s.ConsentDetail.Purpose)

	s, _ = ctrl.SelectConsentAccounts(ctx, id, []string{"sandbox-acc-1"})
	fmt.Println(s.Stage)

	s, _ = ctrl.ApproveConsent(ctx, id)
	fmt.Println(s.Stage, s.Decision)

	// Output:
	// logging_in
	// awaiting_login_otp
	// selecting_institution 3
	// discovering_accounts
	// selecting_accounts_to_link 3
	// verifying_linking_otp
	// reviewing_consent Personal finance management
	// approving_consent
	// completed approved
}
