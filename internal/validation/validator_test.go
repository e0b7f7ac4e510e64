package validation

import "testing"

type seatRequest struct {
	RideID string `json:"ride_id" validate:"required"`
	Seats  int    `json:"seats" validate:"min=1,max=10"`
	Method string `json:"payment_method" validate:"omitempty,oneof=CARD WALLET CASH"`
}

func TestStruct(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		req        seatRequest
		wantFields []string
	}{
		{name: "valid", req: seatRequest{RideID: "r1", Seats: 2}},
		{name: "missing ride", req: seatRequest{Seats: 1}, wantFields: []string{"ride_id"}},
		{name: "zero seats", req: seatRequest{RideID: "r1"}, wantFields: []string{"seats"}},
		{name: "too many seats and bad method", req: seatRequest{RideID: "r1", Seats: 11, Method: "BITCOIN"}, wantFields: []string{"seats", "payment_method"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fields := Struct(tc.req)
			if len(fields) != len(tc.wantFields) {
				t.Fatalf("expected %d field errors, got %v", len(tc.wantFields), fields)
			}
			for _, f := range tc.wantFields {
				if _, ok := fields[f]; !ok {
					t.Errorf("expected error for field %s, got %v", f, fields)
				}
			}
		})
	}
}

func TestFormat_SortedOutput(t *testing.T) {
	t.Parallel()

	got := Format(map[string]string{"seats": "Minimum is 1", "ride_id": "This field is required"})
	want := "ride_id: This field is required; seats: Minimum is 1"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got := Format(nil); got != "" {
		t.Errorf("expected empty string for no errors, got %q", got)
	}
}
