package extract

import "testing"

func TestAutoIncrementColumnFindsNextvalTarget(t *testing.T) {
	body := `
BEGIN
  IF :NEW.ID IS NULL THEN
    SELECT ORDERS_SEQ.NEXTVAL INTO :NEW.ID FROM DUAL;
  END IF;
END;`
	col, ok := autoIncrementColumn(body)
	if !ok {
		t.Fatalf("expected a match")
	}
	if col != "ID" {
		t.Fatalf("expected column ID, got %q", col)
	}
}

func TestAutoIncrementColumnIsCaseInsensitive(t *testing.T) {
	body := `begin select s.nextval into :new.customer_id from dual; end;`
	col, ok := autoIncrementColumn(body)
	if !ok || col != "customer_id" {
		t.Fatalf("expected customer_id, got %q ok=%v", col, ok)
	}
}

func TestAutoIncrementColumnRejectsBodyWithoutNextval(t *testing.T) {
	body := `BEGIN :NEW.UPDATED_AT := SYSDATE; END;`
	if _, ok := autoIncrementColumn(body); ok {
		t.Fatalf("expected no match for a body without NEXTVAL")
	}
}

func TestAutoIncrementColumnRejectsEmptyBody(t *testing.T) {
	if _, ok := autoIncrementColumn(""); ok {
		t.Fatalf("expected no match for an empty body")
	}
}
