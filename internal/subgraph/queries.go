package subgraph

const tokenFields = `
  id
  address
  decimals
  symbol
  name
  totalSupply { exact decimals simple }
`

const bassetFields = `
  id
  ratio
  status
  maxWeight
  isTransferFeeCharged
  vaultBalance { exact decimals simple }
  token {` + tokenFields + `}
`

const vaultFields = `
  id
  lastUpdateTime
  lockupDuration
  periodDuration
  periodFinish
  rewardPerTokenStored
  rewardRate
  stakingContract
  stakingToken { address symbol }
  rewardsToken { address symbol }
  totalStakingRewards
  totalSupply
  totalRaw
  unlockPercentage
  priceCoeff
  boostCoeff
  platformRewardPerTokenStored
  platformRewardRate
  platformRewardsToken { address symbol }
  accounts(where: { account: $account }) @include(if: $hasAccount) {
    boostedBalance
    rawBalance
    lastAction
    lastClaim
    rewardCount
    rewardPerTokenPaid
    rewards
    platformRewardPerTokenPaid
    platformRewards
    rewardEntries(orderBy: index, orderDirection: asc) { index start finish rate }
  }
`

const massetsQuery = `
query Massets($account: String!, $hasAccount: Boolean!) {
  massets {
    id
    feeRate
    redemptionFeeRate
    invariantStartTime
    invariantStartingCap
    invariantCapFactor
    token {` + tokenFields + `}
    basket {
      collateralisationRatio
      failed
      undergoingRecol
      bassets {` + bassetFields + `}
      removedBassets { id token {` + tokenFields + `} }
    }
    savingsContractsV1: savingsContracts(where: { version: 1 }) {
      id
      active
      version
      dailyAPY
      totalSavings { exact decimals simple }
      totalCredits { exact decimals simple }
      latestExchangeRate { rate timestamp }
      creditBalances(where: { account: $account }) @include(if: $hasAccount) { amount }
    }
    savingsContractsV2: savingsContracts(where: { version: 2 }) {
      id
      version
      dailyAPY
      totalSavings { exact decimals simple }
      latestExchangeRate { rate timestamp }
    }
  }
}
`

const feederPoolsQuery = `
query FeederPools($account: String!, $hasAccount: Boolean!) {
  feederPools {
    id
    price
    dailyAPY
    governanceFeeRate
    invariantK
    redemptionFeeRate
    swapFeeRate
    token {` + tokenFields + `}
    fasset {` + tokenFields + `}
    masset {` + tokenFields + `}
    basket {
      failed
      undergoingRecol
      bassets {` + bassetFields + `}
    }
    vault {` + vaultFields + `}
    accounts(where: { account: $account }) @include(if: $hasAccount) {
      cumulativeEarned { exact decimals simple }
      cumulativeEarnedVault { exact decimals simple }
      balance
      balanceVault
      price
      priceVault
      lastUpdate
      lastUpdateVault
    }
  }
  saveVaults: boostedSavingsVaults(where: { feederPool: null }) {` + vaultFields + `}
  userVaults: accounts(where: { id: $account }) @include(if: $hasAccount) {
    id
    boostDirection { directorVaultId }
  }
  boostDirectors { id }
  vaultIds: boostedSavingsVaults(where: { directorVaultId_not: null }) { id directorVaultId }
}
`
