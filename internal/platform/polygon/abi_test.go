package polygon

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

func TestABISelectors(t *testing.T) {
	erc20, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		t.Fatalf("parse erc20: %v", err)
	}
	erc1155, err := abi.JSON(strings.NewReader(erc1155ABIJSON))
	if err != nil {
		t.Fatalf("parse erc1155: %v", err)
	}

	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tests := []struct {
		abi      abi.ABI
		method   string
		args     []any
		selector string
	}{
		{erc20, "balanceOf", []any{owner}, "70a08231"},
		{erc20, "allowance", []any{owner, owner}, "dd62ed3e"},
		{erc1155, "isApprovedForAll", []any{owner, owner}, "e985e9c5"},
		{erc1155, "setApprovalForAll", []any{owner, true}, "a22cb465"},
	}
	for _, tt := range tests {
		data, err := tt.abi.Pack(tt.method, tt.args...)
		if err != nil {
			t.Fatalf("pack %s: %v", tt.method, err)
		}
		if got := hex.EncodeToString(data[:4]); got != tt.selector {
			t.Errorf("%s selector = %s, want %s", tt.method, got, tt.selector)
		}
	}
}
