package auth

import (
	"testing"
	"time"
)

func TestIssueParseRoundTrip(t *testing.T) {
	token, exp, err := Issue("user-1", "Aye Chan", "student", "classtrack", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !exp.After(time.Now()) {
		t.Fatal("expiry not in the future")
	}

	claims, err := Parse(token, "secret", "classtrack")
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "user-1" || claims.Name != "Aye Chan" || claims.Role != "student" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, _, err := Issue("user-1", "Aye Chan", "student", "classtrack", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(token, "other-secret", "classtrack"); err == nil {
		t.Fatal("token accepted with wrong key")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token, _, err := Issue("user-1", "Aye Chan", "student", "someone-else", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(token, "secret", "classtrack"); err == nil {
		t.Fatal("token accepted with wrong issuer")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	token, _, err := Issue("user-1", "Aye Chan", "student", "classtrack", "secret", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(token, "secret", "classtrack"); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Fatal("valid password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("invalid password accepted")
	}
}
