package contract

// ABIJSON is the subset of the MySphere game contract ABI the backend uses
const ABIJSON = `[
  {"type":"function","name":"players","stateMutability":"view",
   "inputs":[{"name":"player","type":"address"}],
   "outputs":[
     {"name":"experience","type":"uint256"},
     {"name":"lastCheckIn","type":"uint256"},
     {"name":"streak","type":"uint256"},
     {"name":"baseLevel","type":"uint8"},
     {"name":"active","type":"bool"}]},
  {"type":"function","name":"getPlayerNFTs","stateMutability":"view",
   "inputs":[{"name":"player","type":"address"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"id","type":"string"},
     {"name":"elementType","type":"uint8"},
     {"name":"rarity","type":"uint8"},
     {"name":"level","type":"uint8"},
     {"name":"power","type":"uint256"},
     {"name":"mintedAt","type":"uint256"},
     {"name":"special","type":"bool"}]}]},
  {"type":"function","name":"register","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"checkIn","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"fuseElements","stateMutability":"nonpayable",
   "inputs":[{"name":"ids","type":"string[]"}],"outputs":[]},
  {"type":"function","name":"levelUp","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"event","name":"Registered","anonymous":false,
   "inputs":[{"name":"player","type":"address","indexed":true}]},
  {"type":"event","name":"CheckedIn","anonymous":false,
   "inputs":[
     {"name":"player","type":"address","indexed":true},
     {"name":"streak","type":"uint256","indexed":false},
     {"name":"experience","type":"uint256","indexed":false},
     {"name":"rewardId","type":"string","indexed":false},
     {"name":"elementType","type":"uint8","indexed":false}]},
  {"type":"event","name":"ElementsFused","anonymous":false,
   "inputs":[
     {"name":"player","type":"address","indexed":true},
     {"name":"burned","type":"string[]","indexed":false},
     {"name":"minted","type":"string","indexed":false},
     {"name":"elementType","type":"uint8","indexed":false},
     {"name":"level","type":"uint8","indexed":false},
     {"name":"rarity","type":"uint8","indexed":false},
     {"name":"bonusLevel","type":"bool","indexed":false},
     {"name":"rarityUpgraded","type":"bool","indexed":false},
     {"name":"special","type":"bool","indexed":false}]},
  {"type":"event","name":"LeveledUp","anonymous":false,
   "inputs":[
     {"name":"player","type":"address","indexed":true},
     {"name":"newLevel","type":"uint8","indexed":false}]}
]`
