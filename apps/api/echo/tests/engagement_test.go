package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trezcool/tuzo/core/coin"
	"github.com/trezcool/tuzo/core/engagement"
	"github.com/trezcool/tuzo/core/user"
	"github.com/trezcool/tuzo/core/wallet"
	testutil "github.com/trezcool/tuzo/tests"
)

func Test_engagementApi_flow(t *testing.T) {
	env := setup(t)
	testutil.SeedPlatformWallet(t, env.walletRepo, 10000)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdminMaster}, true)
	orgAdmin := testutil.CreateUser(t, env.usrRepo, "Org Admin", "orgadm", "orgadm@test.cd", "", []string{user.RoleAdminOrg}, true)
	student := testutil.CreateUser(t, env.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, env.usrRepo, "Outsider", "out", "out@test.cd", "", []string{user.RoleStudent}, true)

	o := testutil.CreateOrg(t, env.orgRepo, "Kin Academy")
	testutil.AddMember(t, env.orgRepo, orgAdmin.ID, o.ID, user.RoleAdminOrg)
	testutil.AddMember(t, env.orgRepo, student.ID, o.ID, user.RoleStudent)

	adminToken := getToken(t, admin)
	orgAdminToken := getToken(t, orgAdmin)
	studentToken := getToken(t, student)
	ctx := context.Background()

	decodeEngagement := func(t *testing.T, b []byte) engagement.Engagement {
		t.Helper()
		var e engagement.Engagement
		if err := json.Unmarshal(b, &e); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		return e
	}

	t.Run("fund the organization from the platform", func(t *testing.T) {
		body := marchallObj(t, coin.Funding{Amount: 4000, Reason: "quarterly budget"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/wallet/orgs/"+o.ID+"/fund", adminToken, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		var bal wallet.Balance
		if err := json.Unmarshal(rec.Body.Bytes(), &bal); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if bal.Kind != wallet.KindOrg || bal.Amount != 4000 {
			t.Errorf("failed! balance = %+v; want %v with amount 4000", bal, wallet.KindOrg)
		}
	})

	t.Run("students cannot create pools", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		body := marchallObj(t, engagement.NewEngagement{Name: "Hackathon prizes"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/orgs/"+o.ID+"/engagements", studentToken, body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	var e engagement.Engagement
	t.Run("org admin creates a draft pool", func(t *testing.T) {
		body := marchallObj(t, engagement.NewEngagement{Name: "Hackathon prizes", Description: "Top three teams."})
		req, rec := newAuthRequest(http.MethodPost, "/v1/orgs/"+o.ID+"/engagements", orgAdminToken, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		e = decodeEngagement(t, rec.Body.Bytes())
		if e.Status != engagement.StatusDraft || e.OrgID != o.ID {
			t.Fatalf("failed! engagement = %+v; want draft for org %v", e, o.ID)
		}
	})

	t.Run("funding the pool activates it", func(t *testing.T) {
		body := marchallObj(t, coin.Funding{Amount: 2500, Reason: "prize pool"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/engagements/"+e.ID+"/fund", orgAdminToken, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		e = decodeEngagement(t, rec.Body.Bytes())
		if e.Status != engagement.StatusActive || e.BudgetTotal != 2500 || e.Remaining != 2500 {
			t.Fatalf("failed! engagement = %+v; want active with budget 2500", e)
		}

		orgBal, err := env.walletRepo.GetBalance(ctx, wallet.OrgAccount(o.ID))
		if err != nil {
			t.Fatalf("GetBalance() failed: %v", err)
		}
		if orgBal.Amount != 1500 {
			t.Errorf("failed! org Amount = %v; want 1500", orgBal.Amount)
		}
	})

	t.Run("pool funding cannot exceed the org wallet", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "insufficient funds"})}
		body := marchallObj(t, coin.Funding{Amount: 5000})
		req, rec := newAuthRequest(http.MethodPost, "/v1/engagements/"+e.ID+"/fund", orgAdminToken, body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("distribution needs staged recipients", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "no recipients staged for distribution"})}
		req, rec := newAuthRequest(http.MethodPost, "/v1/engagements/"+e.ID+"/distribute", orgAdminToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("recipients must be org members", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "user is not a member of this organization"}),
		}
		body := marchallObj(t, engagement.NewRecipient{Email: outsider.Email, Amount: 100})
		req, rec := newAuthRequest(http.MethodPut, "/v1/engagements/"+e.ID+"/recipients", orgAdminToken, body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("stage a payout line", func(t *testing.T) {
		body := marchallObj(t, engagement.NewRecipient{Email: student.Email, Amount: 1000})
		req, rec := newAuthRequest(http.MethodPut, "/v1/engagements/"+e.ID+"/recipients", orgAdminToken, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		var r engagement.Recipient
		if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if r.UserID != student.ID || r.PlannedAmount != 1000 {
			t.Errorf("failed! recipient = %+v; want %v with amount 1000", r, student.ID)
		}
	})

	t.Run("upsert replaces the planned amount", func(t *testing.T) {
		body := marchallObj(t, engagement.NewRecipient{Email: student.Email, Amount: 1500})
		req, rec := newAuthRequest(http.MethodPut, "/v1/engagements/"+e.ID+"/recipients", orgAdminToken, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		recipients, err := env.engagementRepo.QueryRecipients(ctx, e.ID)
		if err != nil {
			t.Fatalf("QueryRecipients() failed: %v", err)
		}
		if len(recipients) != 1 || recipients[0].PlannedAmount != 1500 {
			t.Errorf("failed! recipients = %+v; want one line of 1500", recipients)
		}
	})

	t.Run("distribution pays every staged line", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/engagements/"+e.ID+"/distribute", orgAdminToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		e = decodeEngagement(t, rec.Body.Bytes())
		if e.Status != engagement.StatusActive || e.Remaining != 1000 || e.TotalDistributed != 1500 {
			t.Fatalf("failed! engagement = %+v; want active, remaining 1000, distributed 1500", e)
		}

		// the student's per-org wallet was credited
		req, rec = newAuthRequest(http.MethodGet, "/v1/wallet/me/ledger?org_id="+o.ID, studentToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var entries []wallet.LedgerEntry
		if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(entries) != 1 || entries[0].Delta != 1500 || entries[0].Kind != wallet.EntryEngagementDistribution {
			t.Errorf("failed! entries = %+v; want one %v credit of 1500", entries, wallet.EntryEngagementDistribution)
		}
	})

	t.Run("a retried distribution finds the staging list consumed", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "no recipients staged for distribution"})}
		req, rec := newAuthRequest(http.MethodPost, "/v1/engagements/"+e.ID+"/distribute", orgAdminToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("draining the budget closes the pool", func(t *testing.T) {
		body := marchallObj(t, engagement.NewRecipient{Email: student.Email, Amount: 1000})
		req, rec := newAuthRequest(http.MethodPut, "/v1/engagements/"+e.ID+"/recipients", orgAdminToken, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodPost, "/v1/engagements/"+e.ID+"/distribute", orgAdminToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		e = decodeEngagement(t, rec.Body.Bytes())
		if e.Status != engagement.StatusClosed || e.Remaining != 0 || e.TotalDistributed != 2500 {
			t.Fatalf("failed! engagement = %+v; want closed, remaining 0, distributed 2500", e)
		}
	})

	t.Run("closed pools cannot be funded", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "engagement is closed"})}
		body := marchallObj(t, coin.Funding{Amount: 100})
		req, rec := newAuthRequest(http.MethodPost, "/v1/engagements/"+e.ID+"/fund", orgAdminToken, body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_engagementApi_removeRecipient(t *testing.T) {
	env := setup(t)
	testutil.SeedPlatformWallet(t, env.walletRepo, 5000)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdminMaster}, true)
	orgAdmin := testutil.CreateUser(t, env.usrRepo, "Org Admin", "orgadm", "orgadm@test.cd", "", []string{user.RoleAdminOrg}, true)
	student := testutil.CreateUser(t, env.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	o := testutil.CreateOrg(t, env.orgRepo, "Kin Academy")
	testutil.AddMember(t, env.orgRepo, orgAdmin.ID, o.ID, user.RoleAdminOrg)
	testutil.AddMember(t, env.orgRepo, student.ID, o.ID, user.RoleStudent)
	orgAdminToken := getToken(t, orgAdmin)

	ctx := context.Background()
	if _, err := env.coinSvc.FundOrganization(ctx, admin, o.ID, coin.Funding{Amount: 2000}); err != nil {
		t.Fatalf("FundOrganization() failed: %v", err)
	}
	e, err := env.coinSvc.CreateEngagement(ctx, admin, o.ID, engagement.NewEngagement{Name: "Cleanup day"})
	if err != nil {
		t.Fatalf("CreateEngagement() failed: %v", err)
	}
	if e, err = env.coinSvc.FundEngagement(ctx, admin, e.ID, coin.Funding{Amount: 1000}); err != nil {
		t.Fatalf("FundEngagement() failed: %v", err)
	}
	if _, err = env.coinSvc.UpsertRecipient(ctx, admin, e.ID, engagement.NewRecipient{Email: student.Email, Amount: 500}); err != nil {
		t.Fatalf("UpsertRecipient() failed: %v", err)
	}

	t.Run("email query param is required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "email query parameter is required"})}
		req, rec := newAuthRequest(http.MethodDelete, "/v1/engagements/"+e.ID+"/recipients", orgAdminToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("remove the staged line", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/engagements/"+e.ID+"/recipients?email="+student.Email, orgAdminToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusNoContent, rec.Body.String())
		}

		recipients, err := env.engagementRepo.QueryRecipients(ctx, e.ID)
		if err != nil {
			t.Fatalf("QueryRecipients() failed: %v", err)
		}
		if len(recipients) != 0 {
			t.Errorf("failed! recipients = %+v; want none", recipients)
		}
	})
}
