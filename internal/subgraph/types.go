package subgraph

// Metric is an amount as the subgraphs index it: the scaled integer plus its decimals.
type Metric struct {
	Exact    string `json:"exact"`
	Decimals uint8  `json:"decimals"`
	Simple   string `json:"simple,omitempty"`
}

// Token is the indexed ERC-20 metadata.
type Token struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	Decimals    uint8  `json:"decimals"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	TotalSupply Metric `json:"totalSupply"`
}

// TokenRef is an address/symbol pair used by vault records.
type TokenRef struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// EntityRef is a bare entity id.
type EntityRef struct {
	ID string `json:"id"`
}

// Basset is one entry of an indexed basket.
type Basset struct {
	ID                   string  `json:"id"`
	Ratio                string  `json:"ratio"`
	Status               string  `json:"status"`
	MaxWeight            *string `json:"maxWeight"`
	VaultBalance         Metric  `json:"vaultBalance"`
	IsTransferFeeCharged bool    `json:"isTransferFeeCharged"`
	Token                Token   `json:"token"`
}

// RemovedBasset is a basset that has left the basket.
type RemovedBasset struct {
	ID    string `json:"id"`
	Token Token  `json:"token"`
}

// Basket is the masset basket record.
type Basket struct {
	Bassets                []Basset        `json:"bassets"`
	RemovedBassets         []RemovedBasset `json:"removedBassets"`
	CollateralisationRatio *string         `json:"collateralisationRatio"`
	Failed                 bool            `json:"failed"`
	UndergoingRecol        bool            `json:"undergoingRecol"`
}

// ExchangeRate is the latest savings exchange rate. Rate is a human decimal string.
type ExchangeRate struct {
	Rate      string `json:"rate"`
	Timestamp int64  `json:"timestamp"`
}

// CreditBalance is an account's v1 credit balance; Amount is an 18-decimal scaled integer.
type CreditBalance struct {
	Amount string `json:"amount"`
}

// SavingsContractV1 is the legacy savings contract record.
type SavingsContractV1 struct {
	ID                 string          `json:"id"`
	Active             bool            `json:"active"`
	Version            int             `json:"version"`
	DailyAPY           string          `json:"dailyAPY"`
	TotalSavings       Metric          `json:"totalSavings"`
	TotalCredits       *Metric         `json:"totalCredits"`
	LatestExchangeRate *ExchangeRate   `json:"latestExchangeRate"`
	CreditBalances     []CreditBalance `json:"creditBalances"`
}

// SavingsContractV2 is the current savings contract record.
type SavingsContractV2 struct {
	ID                 string        `json:"id"`
	Version            int           `json:"version"`
	DailyAPY           string        `json:"dailyAPY"`
	TotalSavings       Metric        `json:"totalSavings"`
	LatestExchangeRate *ExchangeRate `json:"latestExchangeRate"`
}

// Masset is an indexed masset with its basket and savings contracts.
type Masset struct {
	ID                   string              `json:"id"`
	Token                Token               `json:"token"`
	Basket               Basket              `json:"basket"`
	FeeRate              *string             `json:"feeRate"`
	RedemptionFeeRate    string              `json:"redemptionFeeRate"`
	InvariantStartTime   *int64              `json:"invariantStartTime"`
	InvariantStartingCap *string             `json:"invariantStartingCap"`
	InvariantCapFactor   *string             `json:"invariantCapFactor"`
	SavingsContractsV1   []SavingsContractV1 `json:"savingsContractsV1"`
	SavingsContractsV2   []SavingsContractV2 `json:"savingsContractsV2"`
}

// MassetsResult is the protocol subgraph response.
type MassetsResult struct {
	Massets []Masset `json:"massets"`
}

// RewardEntry is a reward-rate period of a vault account.
type RewardEntry struct {
	Index  int    `json:"index"`
	Start  int64  `json:"start"`
	Finish int64  `json:"finish"`
	Rate   string `json:"rate"`
}

// VaultAccount is the watched account's position in a boosted savings vault.
// Balances are 18-decimal scaled integers.
type VaultAccount struct {
	BoostedBalance             string        `json:"boostedBalance"`
	RawBalance                 string        `json:"rawBalance"`
	LastAction                 int64         `json:"lastAction"`
	LastClaim                  int64         `json:"lastClaim"`
	RewardCount                int           `json:"rewardCount"`
	RewardEntries              []RewardEntry `json:"rewardEntries"`
	RewardPerTokenPaid         string        `json:"rewardPerTokenPaid"`
	Rewards                    string        `json:"rewards"`
	PlatformRewardPerTokenPaid *string       `json:"platformRewardPerTokenPaid"`
	PlatformRewards            *string       `json:"platformRewards"`
}

// BoostedSavingsVault is an indexed boosted savings vault.
type BoostedSavingsVault struct {
	ID                           string         `json:"id"`
	Accounts                     []VaultAccount `json:"accounts"`
	LastUpdateTime               int64          `json:"lastUpdateTime"`
	LockupDuration               int64          `json:"lockupDuration"`
	PeriodDuration               int64          `json:"periodDuration"`
	PeriodFinish                 int64          `json:"periodFinish"`
	RewardPerTokenStored         string         `json:"rewardPerTokenStored"`
	RewardRate                   string         `json:"rewardRate"`
	RewardsToken                 TokenRef       `json:"rewardsToken"`
	StakingContract              string         `json:"stakingContract"`
	StakingToken                 TokenRef       `json:"stakingToken"`
	TotalStakingRewards          string         `json:"totalStakingRewards"`
	TotalSupply                  string         `json:"totalSupply"`
	TotalRaw                     *string        `json:"totalRaw"`
	UnlockPercentage             string         `json:"unlockPercentage"`
	PriceCoeff                   *string        `json:"priceCoeff"`
	BoostCoeff                   *string        `json:"boostCoeff"`
	PlatformRewardPerTokenStored *string        `json:"platformRewardPerTokenStored"`
	PlatformRewardRate           *string        `json:"platformRewardRate"`
	PlatformRewardsToken         *TokenRef      `json:"platformRewardsToken"`
}

// FeederPoolAccount is the watched account's feeder pool earnings.
type FeederPoolAccount struct {
	CumulativeEarned      Metric `json:"cumulativeEarned"`
	CumulativeEarnedVault Metric `json:"cumulativeEarnedVault"`
	Balance               string `json:"balance"`
	BalanceVault          string `json:"balanceVault"`
	Price                 string `json:"price"`
	PriceVault            string `json:"priceVault"`
	LastUpdate            int64  `json:"lastUpdate"`
	LastUpdateVault       int64  `json:"lastUpdateVault"`
}

// FeederBasket is the two-asset basket of a feeder pool.
type FeederBasket struct {
	Bassets         []Basset `json:"bassets"`
	Failed          bool     `json:"failed"`
	UndergoingRecol bool     `json:"undergoingRecol"`
}

// FeederPool is an indexed feeder pool.
type FeederPool struct {
	ID                string               `json:"id"`
	Basket            FeederBasket         `json:"basket"`
	Fasset            Token                `json:"fasset"`
	Masset            Token                `json:"masset"`
	Token             Token                `json:"token"`
	Price             *string              `json:"price"`
	DailyAPY          string               `json:"dailyAPY"`
	GovernanceFeeRate string               `json:"governanceFeeRate"`
	InvariantK        string               `json:"invariantK"`
	RedemptionFeeRate string               `json:"redemptionFeeRate"`
	SwapFeeRate       string               `json:"swapFeeRate"`
	Vault             *BoostedSavingsVault `json:"vault"`
	Accounts          []FeederPoolAccount  `json:"accounts"`
}

// BoostDirection is one vault an account directs its boost to.
type BoostDirection struct {
	DirectorVaultID int `json:"directorVaultId"`
}

// UserVaults lists the vaults an account directs its boost to.
type UserVaults struct {
	ID             string           `json:"id"`
	BoostDirection []BoostDirection `json:"boostDirection"`
}

// VaultID maps a vault address to its boost director id.
type VaultID struct {
	ID              string `json:"id"`
	DirectorVaultID *int   `json:"directorVaultId"`
}

// FeederPoolsResult is the feeders subgraph response, including the save vaults and the
// boost director bookkeeping lists.
type FeederPoolsResult struct {
	FeederPools    []FeederPool          `json:"feederPools"`
	SaveVaults     []BoostedSavingsVault `json:"saveVaults"`
	UserVaults     []UserVaults          `json:"userVaults"`
	BoostDirectors []EntityRef           `json:"boostDirectors"`
	VaultIDs       []VaultID             `json:"vaultIds"`
}

// EmptyFeederPools is substituted when the network has no feeders subgraph, so the
// masset state can still be built.
func EmptyFeederPools() *FeederPoolsResult {
	return &FeederPoolsResult{
		FeederPools:    []FeederPool{},
		SaveVaults:     []BoostedSavingsVault{},
		UserVaults:     []UserVaults{},
		BoostDirectors: []EntityRef{},
		VaultIDs:       []VaultID{},
	}
}
