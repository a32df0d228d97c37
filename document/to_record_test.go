package document

import (
	"testing"

	"github.com/antflydb/collectioncore/model"
)

type fakeResolver map[string]uint32

func (f fakeResolver) SeqIDFor(docID string) (uint32, bool) {
	id, ok := f[docID]
	return id, ok
}

func nextSeqIDFrom(n uint32) func() uint32 {
	return func() uint32 {
		id := n
		n++
		return id
	}
}

func TestToRecordCreate(t *testing.T) {
	t.Run("succeeds for a new id", func(t *testing.T) {
		res, err := ToRecord(ToRecordRequest{
			Doc: model.Document{"id": "1"}, Op: model.OpCreate, NextSeqID: nextSeqIDFrom(5),
		}, fakeResolver{})
		if err != nil {
			t.Fatalf("ToRecord() error = %v", err)
		}
		if !res.IsNew || res.SeqID != 5 || res.ID != "1" {
			t.Errorf("ToRecord() = %+v, want IsNew=true SeqID=5 ID=1", res)
		}
	})

	t.Run("fails if the id already exists", func(t *testing.T) {
		_, err := ToRecord(ToRecordRequest{
			Doc: model.Document{"id": "1"}, Op: model.OpCreate, NextSeqID: nextSeqIDFrom(5),
		}, fakeResolver{"1": 0})
		if err == nil {
			t.Fatal("expected a conflict error for an existing id")
		}
	})

	t.Run("auto-generates an id when absent", func(t *testing.T) {
		res, err := ToRecord(ToRecordRequest{
			Doc: model.Document{}, Op: model.OpCreate, NextSeqID: nextSeqIDFrom(9),
		}, fakeResolver{})
		if err != nil {
			t.Fatalf("ToRecord() error = %v", err)
		}
		if res.ID != "9" || !res.IsNew {
			t.Errorf("ToRecord() = %+v, want auto-generated id from next_seq_id", res)
		}
	})
}

func TestToRecordUpdate(t *testing.T) {
	t.Run("fails for a missing id", func(t *testing.T) {
		_, err := ToRecord(ToRecordRequest{
			Doc: model.Document{"id": "missing"}, Op: model.OpUpdate, NextSeqID: nextSeqIDFrom(0),
		}, fakeResolver{})
		if err == nil {
			t.Fatal("expected a not-found error for update of a missing id")
		}
	})

	t.Run("fails with no id at all", func(t *testing.T) {
		_, err := ToRecord(ToRecordRequest{
			Doc: model.Document{}, Op: model.OpUpdate, NextSeqID: nextSeqIDFrom(0),
		}, fakeResolver{})
		if err == nil {
			t.Fatal("expected an error: update requires an id")
		}
	})

	t.Run("reuses the existing seq_id", func(t *testing.T) {
		res, err := ToRecord(ToRecordRequest{
			Doc: model.Document{"id": "1"}, Op: model.OpUpdate, NextSeqID: nextSeqIDFrom(99),
		}, fakeResolver{"1": 3})
		if err != nil {
			t.Fatalf("ToRecord() error = %v", err)
		}
		if res.SeqID != 3 || res.IsNew {
			t.Errorf("ToRecord() = %+v, want SeqID=3 IsNew=false", res)
		}
	})
}

func TestToRecordUpsertAndEmplace(t *testing.T) {
	for _, op := range []model.Op{model.OpUpsert, model.OpEmplace} {
		t.Run(op.String(), func(t *testing.T) {
			existing, err := ToRecord(ToRecordRequest{
				Doc: model.Document{"id": "1"}, Op: op, NextSeqID: nextSeqIDFrom(50),
			}, fakeResolver{"1": 3})
			if err != nil {
				t.Fatalf("ToRecord() error = %v", err)
			}
			if existing.SeqID != 3 || existing.IsNew {
				t.Errorf("existing id: ToRecord() = %+v, want SeqID=3 IsNew=false", existing)
			}

			fresh, err := ToRecord(ToRecordRequest{
				Doc: model.Document{"id": "2"}, Op: op, NextSeqID: nextSeqIDFrom(50),
			}, fakeResolver{"1": 3})
			if err != nil {
				t.Fatalf("ToRecord() error = %v", err)
			}
			if fresh.SeqID != 50 || !fresh.IsNew {
				t.Errorf("new id: ToRecord() = %+v, want SeqID=50 IsNew=true", fresh)
			}
		})
	}
}

func TestToRecordRejectsMismatchedIDs(t *testing.T) {
	_, err := ToRecord(ToRecordRequest{
		Doc: model.Document{"id": "body-id"}, ProvidedID: "arg-id", Op: model.OpUpsert, NextSeqID: nextSeqIDFrom(0),
	}, fakeResolver{})
	if err == nil {
		t.Fatal("expected an error when body id and provided id disagree")
	}
}

func TestToRecordUnknownOp(t *testing.T) {
	_, err := ToRecord(ToRecordRequest{
		Doc: model.Document{"id": "1"}, Op: model.Op(99), NextSeqID: nextSeqIDFrom(0),
	}, fakeResolver{})
	if err == nil {
		t.Fatal("expected an error for an unrecognized op")
	}
}
