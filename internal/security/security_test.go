package security

import (
	"strings"
	"testing"
	"time"

	"recon-engine/internal/model"
)

func TestValidateStatementAcceptsGeneratedQueries(t *testing.T) {
	sv := NewSQLValidator(0)
	tests := []struct {
		dialect model.Dialect
		sqlText string
	}{
		{model.DialectMySQL, "SELECT DISTINCT s.* FROM `RBP` s INNER JOIN `OPS_EXCEL` t ON s.`Material` = t.`PLANNING_SKU` WHERE s.`Plant` = 'DE01' LIMIT 50"},
		{model.DialectMariaDB, "SELECT s.* FROM `RBP` s WHERE s.`Description` = 'O''Brien valve' LIMIT 10"},
		{model.DialectPostgreSQL, `SELECT DISTINCT s.* FROM "RBP" s LEFT JOIN "OPS_EXCEL" t ON s."Material" = t."PLANNING_SKU" WHERE t."PLANNING_SKU" IS NULL LIMIT 50`},
		{model.DialectOracle, `SELECT s.* FROM "RBP" s WHERE s."Plant" = 'DE01' AND ROWNUM <= 50`},
		{model.DialectSQLServer, "SELECT DISTINCT TOP 50 s.* FROM [RBP] s INNER JOIN [OPS_EXCEL] t ON s.[Material] = t.[PLANNING_SKU]"},
	}
	for _, tt := range tests {
		if err := sv.ValidateStatement(tt.sqlText, tt.dialect); err != nil {
			t.Errorf("ValidateStatement(%s) rejected valid query: %v\n%s", tt.dialect, err, tt.sqlText)
		}
	}
}

func TestValidateStatementRejectsMutations(t *testing.T) {
	sv := NewSQLValidator(0)
	tests := []struct {
		dialect model.Dialect
		sqlText string
	}{
		{model.DialectMySQL, "UPDATE `RBP` SET `Plant` = 'DE01'"},
		{model.DialectMySQL, "DELETE FROM `RBP`"},
		{model.DialectPostgreSQL, `DROP TABLE "RBP"`},
		{model.DialectPostgreSQL, `INSERT INTO "RBP" VALUES (1)`},
		{model.DialectOracle, `TRUNCATE TABLE "RBP"`},
	}
	for _, tt := range tests {
		if err := sv.ValidateStatement(tt.sqlText, tt.dialect); err == nil {
			t.Errorf("expected rejection for %q", tt.sqlText)
		}
	}
}

func TestValidateStatementRejectsMultipleStatements(t *testing.T) {
	sv := NewSQLValidator(0)
	err := sv.ValidateStatement("SELECT s.* FROM `RBP` s; DROP TABLE `RBP`", model.DialectMySQL)
	if err != ErrMultipleStatements {
		t.Errorf("expected ErrMultipleStatements, got %v", err)
	}
}

func TestValidateStatementRejectsComments(t *testing.T) {
	sv := NewSQLValidator(0)
	for _, sqlText := range []string{
		"SELECT s.* FROM `RBP` s -- hidden",
		"SELECT s.* FROM `RBP` s /* hidden */",
	} {
		if err := sv.ValidateStatement(sqlText, model.DialectMySQL); err != ErrCommentInQuery {
			t.Errorf("expected ErrCommentInQuery for %q, got %v", sqlText, err)
		}
	}
}

func TestValidateStatementIgnoresKeywordsInLiterals(t *testing.T) {
	sv := NewSQLValidator(0)
	sqlText := "SELECT s.* FROM `ORDERS` s WHERE s.`Status` = 'DROP SHIPMENT' LIMIT 10"
	if err := sv.ValidateStatement(sqlText, model.DialectMySQL); err != nil {
		t.Errorf("keyword inside string literal must not trip the screen: %v", err)
	}
}

func TestValidateStatementEmptyAndTooLong(t *testing.T) {
	sv := NewSQLValidator(20)
	if err := sv.ValidateStatement("   ", model.DialectMySQL); err != ErrEmptyQuery {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
	long := "SELECT " + strings.Repeat("x", 50)
	if err := sv.ValidateStatement(long, model.DialectMySQL); err != ErrQueryTooLong {
		t.Errorf("expected ErrQueryTooLong, got %v", err)
	}
}

func TestStripStringLiterals(t *testing.T) {
	got := stripStringLiterals("WHERE a = 'x -- y' AND b = 'O''Brien'")
	if strings.Contains(got, "--") || strings.Contains(got, "Brien") {
		t.Errorf("literals not stripped: %q", got)
	}
	if !strings.Contains(got, "WHERE a = ") {
		t.Errorf("structural SQL lost: %q", got)
	}
}

func TestCredentialVaultRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	vault, err := NewCredentialVault(key)
	if err != nil {
		t.Fatalf("NewCredentialVault failed: %v", err)
	}

	encrypted, err := vault.EncryptString("s3cret-pa55")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if encrypted == "s3cret-pa55" {
		t.Fatal("ciphertext equals plaintext")
	}

	decrypted, err := vault.DecryptString(encrypted)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if decrypted != "s3cret-pa55" {
		t.Errorf("round trip mismatch: %q", decrypted)
	}
}

func TestCredentialVaultRejectsShortKey(t *testing.T) {
	if _, err := NewCredentialVault([]byte("short")); err != ErrInvalidKeyLength {
		t.Errorf("expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestCredentialVaultRejectsTamperedCiphertext(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	vault, _ := NewCredentialVault(key)
	encrypted, _ := vault.EncryptString("payload")

	tampered := "A" + encrypted[1:]
	if _, err := vault.DecryptString(tampered); err == nil {
		t.Error("expected tampered ciphertext to fail")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	token, err := manager.GenerateToken("u-1", "alice", []string{"admin", "analyst"})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "u-1" || claims.Username != "alice" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if !claims.HasRole("admin") || claims.HasRole("viewer") {
		t.Error("role check mismatch")
	}
	if !claims.HasAnyRole("viewer", "analyst") {
		t.Error("HasAnyRole should match analyst")
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, _ := NewJWTManager("secret-a", time.Hour).GenerateToken("u-1", "alice", nil)
	if _, err := NewJWTManager("secret-b", time.Hour).ValidateToken(token); err == nil {
		t.Error("expected validation failure with wrong secret")
	}
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute)
	token, err := manager.GenerateToken("u-1", "alice", nil)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := manager.ValidateToken(token); err == nil {
		t.Error("expected expired token to fail validation")
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	if _, err := manager.ExtractTokenFromHeader(""); err == nil {
		t.Error("expected error for empty header")
	}
	if _, err := manager.ExtractTokenFromHeader("Basic abc"); err == nil {
		t.Error("expected error for non-bearer header")
	}
	token, err := manager.ExtractTokenFromHeader("Bearer abc.def.ghi")
	if err != nil || token != "abc.def.ghi" {
		t.Errorf("unexpected extraction result: %q, %v", token, err)
	}
}
