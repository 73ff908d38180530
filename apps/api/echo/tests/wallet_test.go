package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/trezcool/tuzo/core/coin"
	"github.com/trezcool/tuzo/core/user"
	"github.com/trezcool/tuzo/core/wallet"
	emailsvc "github.com/trezcool/tuzo/services/email"
	testutil "github.com/trezcool/tuzo/tests"
)

func Test_walletApi_allocate(t *testing.T) {
	env := setup(t)
	testutil.SeedPlatformWallet(t, env.walletRepo, 10000)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdminMaster}, true)
	staff := testutil.CreateUser(t, env.usrRepo, "Staff", "staffer", "staff@test.cd", "", []string{user.RoleStaff}, true)
	student := testutil.CreateUser(t, env.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Master admin required", token: getToken(t, staff), wantCode: http.StatusForbidden,
			body:     marchallObj(t, coin.Allocation{Email: student.Email, Amount: 100}),
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "amount": "this field is required"}),
		},
		{
			name: "unknown email", token: adminToken, wantCode: http.StatusNotFound,
			body:     marchallObj(t, coin.Allocation{Email: "lol@test.cd", Amount: 100}),
			wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
		{
			name: "insufficient funds", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, coin.Allocation{Email: student.Email, Amount: 20000}),
			wantData: marchallObj(t, httpErr{Error: "insufficient funds"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/wallet/allocations"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("platform balance returned after allocation", func(t *testing.T) {
		emailsvc.SentMessages = nil // reset

		body := marchallObj(t, coin.Allocation{Email: student.Email, Amount: 1500, Reason: "welcome grant"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/wallet/allocations", adminToken, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		var bal wallet.Balance
		if err := json.Unmarshal(rec.Body.Bytes(), &bal); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if bal.Kind != wallet.KindPlatform {
			t.Errorf("failed! Kind = %v; want %v", bal.Kind, wallet.KindPlatform)
		}
		if bal.Amount != 8500 {
			t.Errorf("failed! Amount = %v; want %v", bal.Amount, 8500)
		}

		// the student is notified post-commit
		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
		}
		wantSubj := fmt.Sprintf("You received %d coins", 1500)
		if subj := emailsvc.SentMessages[0].Subject; !strings.Contains(subj, wantSubj) {
			t.Errorf("failed! Subject = %q; want it to contain %q", subj, wantSubj)
		}
	})
}

func Test_walletApi_myWalletAndLedger(t *testing.T) {
	env := setup(t)
	testutil.SeedPlatformWallet(t, env.walletRepo, 5000)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdminMaster}, true)
	staff := testutil.CreateUser(t, env.usrRepo, "Staff", "staffer", "staff@test.cd", "", []string{user.RoleStaff}, true)
	student := testutil.CreateUser(t, env.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	o := testutil.CreateOrg(t, env.orgRepo, "Kin Academy")
	testutil.AddMember(t, env.orgRepo, student.ID, o.ID, user.RoleStudent)
	studentToken := getToken(t, student)

	ctx := context.Background()
	if _, err := env.coinSvc.AllocateToUser(ctx, admin, coin.Allocation{Email: student.Email, Amount: 1200, Reason: "seed"}); err != nil {
		t.Fatalf("AllocateToUser() failed: %v", err)
	}

	t.Run("my wallet overview", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/wallet/me", studentToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		var overview coin.WalletOverview
		if err := json.Unmarshal(rec.Body.Bytes(), &overview); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if overview.Global.Kind != wallet.KindStudentGlobal || overview.Global.Amount != 1200 {
			t.Errorf("failed! Global = %+v; want kind %v, amount 1200", overview.Global, wallet.KindStudentGlobal)
		}
		if len(overview.OrgBalances) != 1 {
			t.Fatalf("failed! len(OrgBalances) = %d; want 1", len(overview.OrgBalances))
		}
		if ob := overview.OrgBalances[0]; ob.OrgID != o.ID || ob.Amount != 0 {
			t.Errorf("failed! OrgBalances[0] = %+v; want org %v, amount 0", ob, o.ID)
		}
	})

	t.Run("my global ledger", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/wallet/me/ledger", studentToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		var entries []wallet.LedgerEntry
		if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("failed! len(entries) = %d; want 1", len(entries))
		}
		if e := entries[0]; e.Delta != 1200 || e.Kind != wallet.EntryFundUser || e.ActorID != admin.ID {
			t.Errorf("failed! entry = %+v; want delta 1200, kind %v, actor %v", e, wallet.EntryFundUser, admin.ID)
		}
	})

	t.Run("my per-org ledger starts empty", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/wallet/me/ledger?org_id="+o.ID, studentToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		var entries []wallet.LedgerEntry
		if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("failed! len(entries) = %d; want 0", len(entries))
		}
	})

	t.Run("students cannot read other users' balances", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		req, rec := newAuthRequest(http.MethodGet, "/v1/wallet/users/"+staff.ID, studentToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("staff can read a student's balances", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/wallet/users/"+student.ID, getToken(t, staff))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		var overview coin.WalletOverview
		if err := json.Unmarshal(rec.Body.Bytes(), &overview); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if overview.Global.Amount != 1200 {
			t.Errorf("failed! Global.Amount = %v; want 1200", overview.Global.Amount)
		}
	})
}

func Test_walletApi_adjust(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdminMaster}, true)
	staff := testutil.CreateUser(t, env.usrRepo, "Staff", "staffer", "staff@test.cd", "", []string{user.RoleStaff}, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "Master admin required", token: getToken(t, staff), wantCode: http.StatusForbidden,
			body:     marchallObj(t, coin.Adjustment{Account: wallet.PlatformAccount(), Delta: 100, Reason: "lol"}),
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, coin.Adjustment{Account: wallet.PlatformAccount()}),
			wantData: marchallObj(t, map[string]string{"delta": "this field is required", "reason": "this field is required"}),
		},
		{
			name: "wallets never go negative", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, coin.Adjustment{Account: wallet.PlatformAccount(), Delta: -5000, Reason: "oops"}),
			wantData: marchallObj(t, httpErr{Error: "insufficient funds"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/wallet/adjustments"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("mint onto the platform wallet", func(t *testing.T) {
		body := marchallObj(t, coin.Adjustment{Account: wallet.PlatformAccount(), Delta: 800, Reason: "initial float"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/wallet/adjustments", adminToken, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		var bal wallet.Balance
		if err := json.Unmarshal(rec.Body.Bytes(), &bal); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if bal.Amount != 800 {
			t.Errorf("failed! Amount = %v; want 800", bal.Amount)
		}

		entries, err := env.walletRepo.QueryEntries(context.Background(), wallet.PlatformAccount(), 0, 0)
		if err != nil {
			t.Fatalf("QueryEntries() failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Kind != wallet.EntryManualAdjust {
			t.Errorf("failed! entries = %+v; want one %v entry", entries, wallet.EntryManualAdjust)
		}
	})
}
