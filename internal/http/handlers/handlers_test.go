package handlers

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/installsight/backend/internal/identity"
	"github.com/installsight/backend/internal/models"
)

func TestParseAccountsCSV_NormalizesVariants(t *testing.T) {
	content := "account_id,name,territory\n" +
		"a1,Acme Corporation,WEST\n" +
		"a2,ACME CORP.,WEST\n"
	fh := makeMultipartFile(t, "accounts", "accounts.csv", content)

	accounts, errs := parseAccountsCSV(fh, identity.NewNormalizer(85))
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].NormalizedName != accounts[1].NormalizedName {
		t.Fatalf("variants of the same company should share a canonical name: %q vs %q",
			accounts[0].NormalizedName, accounts[1].NormalizedName)
	}
	if accounts[0].TerritoryID != "WEST" {
		t.Fatalf("territory not parsed, got %q", accounts[0].TerritoryID)
	}
}

func TestParseAccountsCSV_MissingNameSkipped(t *testing.T) {
	content := "account_id,name\na1,Acme Corporation\na2,\n"
	fh := makeMultipartFile(t, "accounts", "accounts.csv", content)

	accounts, errs := parseAccountsCSV(fh, identity.NewNormalizer(85))
	if len(accounts) != 1 {
		t.Fatalf("expected the good row only, got %d", len(accounts))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 row error, got %v", errs)
	}
}

func TestParseInstallBaseCSV_BadDateRowSkipped(t *testing.T) {
	content := "serial,account_id,product_name,eol_date,support_status\n" +
		"SN1,a1,ProLiant DL360 Gen9,2020-06-01,Expired\n" +
		"SN2,a1,ProLiant DL380 Gen9,not-a-date,Expired\n" +
		"SN3,a1,Nimble Storage HF20,,Active\n"
	fh := makeMultipartFile(t, "install_base", "install_base.csv", content)

	items, errs := parseInstallBaseCSV(fh)
	if len(items) != 2 {
		t.Fatalf("expected 2 parsed rows, got %d", len(items))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 row error, got %v", errs)
	}
	if items[0].EOLDate == nil {
		t.Fatalf("eol_date should parse for SN1")
	}
	if items[1].EOLDate != nil {
		t.Fatalf("empty eol_date should stay nil for SN3")
	}
}

func TestParseInstallBaseCSV_HeaderAliases(t *testing.T) {
	content := "Serial Number,Account,Product,End_Of_Life,Coverage\n" +
		"SN1,a1,ProLiant DL360 Gen10,01/15/2021,Uncovered\n"
	fh := makeMultipartFile(t, "install_base", "install_base.csv", content)

	items, errs := parseInstallBaseCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Serial != "SN1" || items[0].AccountID != "a1" {
		t.Fatalf("aliased headers not mapped: %+v", items[0])
	}
	if items[0].EOLDate == nil {
		t.Fatalf("US date layout should parse")
	}
	if items[0].SupportStatus != "Uncovered" {
		t.Fatalf("coverage alias not mapped, got %q", items[0].SupportStatus)
	}
}

func TestParseServiceCatalogCSV_OptionalFields(t *testing.T) {
	content := "service_type,product_family,product_description,sku_code,priority,match_confidence,value_band\n" +
		"Health Check,Compute,ProLiant DL360,HC-001,1,90,50-100k\n" +
		"Installation & Startup,Compute,,,,,\n"
	fh := makeMultipartFile(t, "service_catalog", "service_catalog.csv", content)

	catalog, errs := parseServiceCatalogCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(catalog) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(catalog))
	}
	first := catalog[0]
	if first.SKUCode == nil || *first.SKUCode != "HC-001" {
		t.Fatalf("sku_code not parsed: %+v", first)
	}
	if first.Priority == nil || *first.Priority != 1 {
		t.Fatalf("priority not parsed: %+v", first)
	}
	if first.MatchConfidence != 90 {
		t.Fatalf("match_confidence = %v, want 90", first.MatchConfidence)
	}
	second := catalog[1]
	if second.SKUCode != nil || second.Priority != nil || second.ValueBand != nil {
		t.Fatalf("empty optional fields should stay nil: %+v", second)
	}
	if second.ID == "" {
		t.Fatalf("rows without an id should get one generated")
	}
}

func TestParseEngagementsCSV(t *testing.T) {
	content := "account_id,practice,description,size_category,status,start_date,end_date\n" +
		"a1,Advisory,VMware virtualization design,Medium,Completed,2024-01-10,2024-03-01\n" +
		",Advisory,orphan row,Small,Completed,,\n"
	fh := makeMultipartFile(t, "engagements", "engagements.csv", content)

	engagements, errs := parseEngagementsCSV(fh)
	if len(engagements) != 1 {
		t.Fatalf("expected 1 engagement, got %d", len(engagements))
	}
	if len(errs) != 1 {
		t.Fatalf("rows without account_id must be reported, got %v", errs)
	}
	e := engagements[0]
	if e.ID == "" {
		t.Fatalf("missing engagement id should be generated")
	}
	if e.StartDate == nil || e.EndDate == nil {
		t.Fatalf("dates not parsed: %+v", e)
	}
}

func TestParseDatePtr(t *testing.T) {
	for _, raw := range []string{"2024-06-01", "06/01/2024", "2024/06/01"} {
		if d, err := parseDatePtr(raw); err != nil || d == nil {
			t.Errorf("layout %q should parse, got %v %v", raw, d, err)
		}
	}
	if d, err := parseDatePtr("N/A"); err != nil || d != nil {
		t.Errorf("n/a should be treated as absent, got %v %v", d, err)
	}
	if _, err := parseDatePtr("June 1st"); err == nil {
		t.Errorf("garbage date should error")
	}
}

func TestEntityAccountsMergesSameIdentity(t *testing.T) {
	accounts := []models.Account{
		{ID: "a1", Name: "Acme Corporation", NormalizedName: "acme"},
		{ID: "a2", Name: "ACME CORP.", NormalizedName: "acme"},
		{ID: "b1", Name: "Globex", NormalizedName: "globex"},
	}

	identity, ids := entityAccounts(accounts, "a1")
	if identity != "acme" {
		t.Errorf("identity = %q, want acme", identity)
	}
	if len(ids) != 2 {
		t.Fatalf("expected both acme rows, got %v", ids)
	}

	identity, ids = entityAccounts(accounts, "b1")
	if identity != "globex" || len(ids) != 1 {
		t.Errorf("single-row entity should resolve to itself: %q %v", identity, ids)
	}
}

func TestEntityAccountsUnknownIDResolvesToItself(t *testing.T) {
	identity, ids := entityAccounts(nil, "ghost")
	if identity != "ghost" || len(ids) != 1 || ids[0] != "ghost" {
		t.Errorf("unknown id must scope to itself: %q %v", identity, ids)
	}
}

func makeMultipartFile(t *testing.T, fieldName, filename, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(int64(buf.Len()))
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	files := form.File[fieldName]
	if len(files) == 0 {
		t.Fatalf("no file headers found")
	}
	return files[0]
}
