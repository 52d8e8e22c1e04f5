package vm

// Gas cost constants for the Cancun instruction set.
const (
	GasQuickStep   uint64 = 2
	GasFastestStep uint64 = 3
	GasFastStep    uint64 = 5
	GasMidStep     uint64 = 8
	GasSlowStep    uint64 = 10
	GasExtStep     uint64 = 20

	// EIP-2929 warm/cold access costs.
	ColdAccountAccessCost uint64 = 2600
	ColdSloadCost         uint64 = 2100
	WarmStorageReadCost   uint64 = 100

	// EIP-2200/3529 storage write schedule.
	SstoreSetGas       uint64 = 20000 // zero -> non-zero
	SstoreResetGas     uint64 = 5000 - ColdSloadCost
	SstoreClearsRefund uint64 = SstoreResetGas + TxAccessListStorageKeyGas // EIP-3529 refund for clearing a slot

	// SstoreSentryGas is the minimum gas that must remain for SSTORE to
	// proceed (EIP-2200 reentrancy sentry).
	SstoreSentryGas uint64 = 2300

	// MaxRefundQuotient caps the refund at gasUsed / 5 (EIP-3529).
	MaxRefundQuotient uint64 = 5

	CreateGas       uint64 = 32000
	CreateDataGas   uint64 = 200 // per byte of deployed code
	InitCodeWordGas uint64 = 2   // EIP-3860, per word of initcode

	// MaxCodeSize bounds deployed code (EIP-170); MaxInitCodeSize bounds
	// initcode (EIP-3860).
	MaxCodeSize     = 24576
	MaxInitCodeSize = 2 * MaxCodeSize

	CallValueTransferGas uint64 = 9000
	CallNewAccountGas    uint64 = 25000
	CallStipend          uint64 = 2300
	CallGasFraction      uint64 = 64 // EIP-150: caller retains 1/64 of remaining gas
	SelfdestructGas      uint64 = 5000

	LogGas      uint64 = 375
	LogTopicGas uint64 = 375
	LogDataGas  uint64 = 8

	Keccak256Gas     uint64 = 30
	Keccak256WordGas uint64 = 6

	MemoryGas  uint64 = 3
	CopyGas    uint64 = 3
	ExpByteGas uint64 = 50

	JumpdestGas uint64 = 1

	// EIP-1153 transient storage, EIP-5656 MCOPY, EIP-4844/7516 blob ops.
	TloadGas       uint64 = 100
	TstoreGas      uint64 = 100
	BlobHashGas    uint64 = 3
	BlobBaseFeeGas uint64 = 2

	// Transaction intrinsic costs.
	TxGas                     uint64 = 21000
	TxGasContractCreation     uint64 = 53000
	TxDataZeroGas             uint64 = 4
	TxDataNonZeroGas          uint64 = 16
	TxAccessListAddressGas    uint64 = 2400
	TxAccessListStorageKeyGas uint64 = 1900

	// Precompile pricing (EIP-1108 for the bn256 set, EIP-2565 for
	// modexp, EIP-152 charges per round, EIP-4844 a flat fee).
	EcrecoverGas            uint64 = 3000
	Sha256BaseGas           uint64 = 60
	Sha256PerWordGas        uint64 = 12
	Ripemd160BaseGas        uint64 = 600
	Ripemd160PerWordGas     uint64 = 120
	IdentityBaseGas         uint64 = 15
	IdentityPerWordGas      uint64 = 3
	ModExpMinGas            uint64 = 200
	Bn256AddGas             uint64 = 150
	Bn256ScalarMulGas       uint64 = 6000
	Bn256PairingBaseGas     uint64 = 45000
	Bn256PairingPerPointGas uint64 = 34000
	PointEvaluationGas      uint64 = 50000
)
