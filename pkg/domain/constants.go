package domain

// Keys used inside Session.TempData.
const (
	KeyName           = "name"
	KeyEmail          = "email"
	KeyAddress        = "address"
	KeyDraft          = "draft"
	KeySelectedWallet = "selected_wallet"
	KeyWalletList     = "wallet_list"
)

// AddressLength is the length of a textual ledger address ("0x" + 40 hex digits).
const AddressLength = 42
