package message

import "testing"

func testPhoto(id int64) Attachment {
	return Attachment{Kind: KindPhoto, Media: MediaRef{OwnerID: 1, ID: id}}
}

func testDoc(id int64) Attachment {
	return Attachment{Kind: KindDoc, Media: MediaRef{OwnerID: 1, ID: id}}
}

func TestAttachmentListLookup(t *testing.T) {
	t.Parallel()

	list := NewAttachmentList([]Attachment{testPhoto(1), testDoc(2), testPhoto(3)})

	if !list.HasAttachments(KindAny) {
		t.Fatalf("expected any-kind match on a non-empty list")
	}
	if !list.HasAttachments(KindPhoto) || !list.HasAttachments(KindDoc) {
		t.Fatalf("expected photo and doc matches")
	}
	if list.HasAttachments(KindAudio) {
		t.Fatalf("unexpected audio match")
	}

	photos := list.FindAttachments(KindPhoto)
	if len(photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(photos))
	}
	if photos[0].Media.ID != 1 || photos[1].Media.ID != 3 {
		t.Fatalf("photo order not preserved: %+v", photos)
	}
	if got := list.FindAttachments(KindAny); len(got) != 3 {
		t.Fatalf("expected all 3 attachments, got %d", len(got))
	}
}

func TestAttachmentListEmpty(t *testing.T) {
	t.Parallel()

	list := NewAttachmentList(nil)
	if list.HasAttachments(KindAny) {
		t.Fatalf("empty list must not match any kind")
	}
	got := list.FindAttachments(KindAny)
	if got == nil {
		t.Fatalf("find must return an empty slice, not nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected no attachments, got %d", len(got))
	}
}

func TestForwardChainLookup(t *testing.T) {
	t.Parallel()

	chain := newForwardChain([]Fragment{
		{ID: 1, Attachments: []Attachment{testPhoto(10)}},
		{ID: 2},
		{ID: 3, Attachments: []Attachment{testDoc(20), testPhoto(30)}},
	})

	if chain.Len() != 3 {
		t.Fatalf("expected 3 forwards, got %d", chain.Len())
	}
	if !chain.HasAttachments(KindDoc) {
		t.Fatalf("expected doc match in chain")
	}
	if chain.HasAttachments(KindAudio) {
		t.Fatalf("unexpected audio match in chain")
	}

	photos := chain.FindAttachments(KindPhoto)
	if len(photos) != 2 || photos[0].Media.ID != 10 || photos[1].Media.ID != 30 {
		t.Fatalf("chain order not preserved: %+v", photos)
	}
	all := chain.FindAttachments(KindAny)
	if len(all) != 3 {
		t.Fatalf("expected 3 attachments across the chain, got %d", len(all))
	}
}

func TestForwardChainDoesNotDescend(t *testing.T) {
	t.Parallel()

	chain := newForwardChain([]Fragment{
		{
			ID: 1,
			Forwards: []Fragment{
				{ID: 2, Attachments: []Attachment{testPhoto(10)}},
			},
		},
	})

	if chain.HasAttachments(KindPhoto) {
		t.Fatalf("chain lookup must not descend into nested forwards")
	}
	nested := chain[0].Forwards()
	if !nested.HasAttachments(KindPhoto) {
		t.Fatalf("nested forwards must stay reachable by walking")
	}
}

func TestForwardChainEmpty(t *testing.T) {
	t.Parallel()

	if chain := newForwardChain(nil); chain != nil {
		t.Fatalf("expected nil chain for no forwards")
	}
	var chain ForwardChain
	got := chain.FindAttachments(KindAny)
	if got == nil || len(got) != 0 {
		t.Fatalf("empty chain must return an empty slice, got %v", got)
	}
}
